package handlers

import (
	"kalm/internal/authz"
	"kalm/internal/middleware"
	"kalm/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// BrandHandler handles HTTP requests for brands.
type BrandHandler struct {
	brandService *services.BrandService
	validate     *validator.Validate
}

// NewBrandHandler creates a new BrandHandler.
func NewBrandHandler(brandService *services.BrandService) *BrandHandler {
	return &BrandHandler{
		brandService: brandService,
		validate:     validator.New(),
	}
}

// RegisterRoutes registers the brand routes.
func (h *BrandHandler) RegisterRoutes(router fiber.Router) {
	brands := router.Group("/brands")
	brands.Get("/", h.GetAllBrands)
	brands.Get("/:id", h.GetBrandByID)
	brands.Post("/", middleware.Require(authz.AdminOnly), h.CreateBrand)
	brands.Put("/:id", middleware.Require(authz.AdminOnly), h.UpdateBrand)
	brands.Delete("/:id", middleware.Require(authz.AdminOnly), h.DeleteBrand)
}

func (h *BrandHandler) GetAllBrands(c *fiber.Ctx) error {
	brands, err := h.brandService.ListBrands(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": brands})
}

func (h *BrandHandler) GetBrandByID(c *fiber.Ctx) error {
	brand, err := h.brandService.GetBrandByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": brand})
}

func (h *BrandHandler) CreateBrand(c *fiber.Ctx) error {
	var in services.BrandInput
	if err := bind(c, h.validate, &in); err != nil {
		return err
	}

	brand, err := h.brandService.CreateBrand(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg":  "brand created",
		"data": brand,
	})
}

func (h *BrandHandler) UpdateBrand(c *fiber.Ctx) error {
	var patch services.BrandPatch
	if err := bind(c, h.validate, &patch); err != nil {
		return err
	}

	brand, err := h.brandService.UpdateBrand(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":  "brand updated",
		"data": brand,
	})
}

// DeleteBrand removes a brand. Products that reference it are left as they are.
func (h *BrandHandler) DeleteBrand(c *fiber.Ctx) error {
	if err := h.brandService.DeleteBrand(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "brand deleted"})
}
