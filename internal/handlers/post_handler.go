package handlers

import (
	"kalm/internal/authz"
	"kalm/internal/middleware"
	"kalm/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PostHandler handles HTTP requests for blog posts.
type PostHandler struct {
	postService *services.PostService
	validate    *validator.Validate
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(postService *services.PostService) *PostHandler {
	return &PostHandler{
		postService: postService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the post routes. Editing is open to any signed-in
// account; the service decides whether the caller owns the post.
func (h *PostHandler) RegisterRoutes(router fiber.Router) {
	posts := router.Group("/posts")
	posts.Get("/", h.GetAllPosts)
	posts.Get("/:id", h.GetPostByID)
	posts.Post("/", middleware.Require(authz.Authors), h.CreatePost)
	posts.Put("/:id", middleware.Require(authz.Authenticated), h.UpdatePost)
	posts.Delete("/:id", middleware.Require(authz.AdminOnly), h.DeletePost)
}

func (h *PostHandler) GetAllPosts(c *fiber.Ctx) error {
	posts, err := h.postService.ListPosts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": posts})
}

func (h *PostHandler) GetPostByID(c *fiber.Ctx) error {
	post, err := h.postService.GetPostByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": post})
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var in services.PostInput
	if err := bind(c, h.validate, &in); err != nil {
		return err
	}

	post, err := h.postService.CreatePost(c.UserContext(), middleware.IdentityFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg":  "post created",
		"data": post,
	})
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var patch services.PostPatch
	if err := bind(c, h.validate, &patch); err != nil {
		return err
	}

	post, err := h.postService.UpdatePost(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":  "post updated",
		"data": post,
	})
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	if err := h.postService.DeletePost(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "post deleted"})
}
