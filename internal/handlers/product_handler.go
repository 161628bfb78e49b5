package handlers

import (
	"kalm/internal/authz"
	"kalm/internal/middleware"
	"kalm/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	productService *services.ProductService
	validate       *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the product routes. Reads are public; writes are admin only.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	products := router.Group("/products")
	products.Get("/", h.GetAllProducts)
	products.Get("/name/:name", h.GetProductsByName)
	products.Get("/:id", h.GetProductByID)
	products.Post("/", middleware.Require(authz.AdminOnly), h.CreateProduct)
	products.Put("/:id", middleware.Require(authz.AdminOnly), h.UpdateProduct)
	products.Delete("/:id", middleware.Require(authz.AdminOnly), h.DeleteProduct)
}

// GetAllProducts lists products, truncated for free and anonymous callers.
func (h *ProductHandler) GetAllProducts(c *fiber.Ctx) error {
	listing, err := h.productService.ListProducts(c.UserContext(), middleware.IdentityFrom(c), c.Query("q"), c.Query("type"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": listing.Products,
		"role": listing.Role,
	})
}

// GetProductsByName returns products whose name matches exactly.
func (h *ProductHandler) GetProductsByName(c *fiber.Ctx) error {
	products, err := h.productService.FindProductsByName(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": products})
}

// GetProductByID returns one product with its brand.
func (h *ProductHandler) GetProductByID(c *fiber.Ctx) error {
	product, err := h.productService.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": product})
}

// CreateProduct adds a product to the catalogue.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := bind(c, h.validate, &in); err != nil {
		return err
	}

	product, err := h.productService.CreateProduct(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg":  "product created",
		"data": product,
	})
}

// UpdateProduct applies a partial update.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	var patch services.ProductPatch
	if err := bind(c, h.validate, &patch); err != nil {
		return err
	}

	product, err := h.productService.UpdateProduct(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":  "product updated",
		"data": product,
	})
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.productService.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "product deleted"})
}
