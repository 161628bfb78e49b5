package handlers

import (
	"kalm/internal/authz"
	"kalm/internal/middleware"
	"kalm/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AccountHandler handles registration, login and account management.
type AccountHandler struct {
	authService    *services.AuthService
	accountService *services.AccountService
	loginGuard     fiber.Handler
	validate       *validator.Validate
}

// NewAccountHandler creates a new AccountHandler. loginGuard, when not nil,
// runs in front of the login route (rate limiting).
func NewAccountHandler(authService *services.AuthService, accountService *services.AccountService, loginGuard fiber.Handler) *AccountHandler {
	return &AccountHandler{
		authService:    authService,
		accountService: accountService,
		loginGuard:     loginGuard,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the account routes.
func (h *AccountHandler) RegisterRoutes(router fiber.Router) {
	accounts := router.Group("/accounts")
	accounts.Post("/", h.HandleRegister)
	if h.loginGuard != nil {
		accounts.Post("/login", h.loginGuard, h.HandleLogin)
	} else {
		accounts.Post("/login", h.HandleLogin)
	}
	accounts.Get("/me", middleware.Require(authz.Authenticated), h.HandleMe)
	accounts.Post("/upgrade", middleware.Require(authz.Authenticated), h.HandleUpgrade)

	accounts.Get("/", middleware.Require(authz.AdminOnly), h.HandleList)
	accounts.Get("/:id", middleware.Require(authz.Authenticated), h.HandleGet)
	accounts.Put("/:id", middleware.Require(authz.Authenticated), h.HandleUpdate)
	accounts.Put("/:id/role", middleware.Require(authz.AdminOnly), h.HandleSetRole)
	accounts.Delete("/:id", middleware.Require(authz.AdminOnly), h.HandleDelete)
}

// RegisterRequest is the body of a registration request. Only the email is
// checked here; empty name and password are reported by the service after the
// duplicate check.
type RegisterRequest struct {
	DisplayName string `json:"displayName" validate:"max=100"`
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password"`
}

// HandleRegister creates a free account.
func (h *AccountHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	account, err := h.authService.Register(c.UserContext(), req.DisplayName, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"msg":  "account created",
		"data": account.Summary(),
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin checks credentials and issues a session token.
func (h *AccountHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	token, account, err := h.authService.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"msg":     "login successful",
		"token":   token,
		"account": account,
	})
}

// HandleMe returns the caller's own account.
func (h *AccountHandler) HandleMe(c *fiber.Ctx) error {
	account, err := h.accountService.Profile(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": account})
}

// HandleUpgrade promotes the caller to premium and returns a fresh token.
func (h *AccountHandler) HandleUpgrade(c *fiber.Ctx) error {
	account, token, err := h.accountService.Upgrade(c.UserContext(), middleware.IdentityFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":   "account upgraded to premium",
		"data":  account,
		"token": token,
	})
}

// HandleList lists every account.
func (h *AccountHandler) HandleList(c *fiber.Ctx) error {
	accounts, err := h.accountService.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": accounts})
}

// HandleGet returns one account.
func (h *AccountHandler) HandleGet(c *fiber.Ctx) error {
	account, err := h.accountService.Get(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": account})
}

// HandleUpdate applies a profile patch.
func (h *AccountHandler) HandleUpdate(c *fiber.Ctx) error {
	var patch services.AccountUpdate
	if err := bind(c, h.validate, &patch); err != nil {
		return err
	}

	account, err := h.accountService.Update(c.UserContext(), middleware.IdentityFrom(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":  "account updated",
		"data": account,
	})
}

// RoleRequest is the body of a role change.
type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// HandleSetRole changes an account's tier.
func (h *AccountHandler) HandleSetRole(c *fiber.Ctx) error {
	var req RoleRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	account, err := h.accountService.SetRole(c.UserContext(), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"msg":  "role updated",
		"data": account,
	})
}

// HandleDelete removes an account.
func (h *AccountHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.accountService.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"msg": "account deleted"})
}
