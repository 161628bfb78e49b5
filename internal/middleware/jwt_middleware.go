package middleware

import (
	"strings"

	"kalm/internal/apperr"
	"kalm/internal/authz"
	"kalm/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	identityKey  = "identity"
	tokenErrKey  = "token_error"
	bearerPrefix = "Bearer"
)

// TokenDecoder validates a session token and returns its identity.
type TokenDecoder interface {
	DecodeIdentity(token string) (*models.Identity, error)
}

// Identify decodes the bearer token, if any, and stores the identity on the
// context. It never rejects: a bad token leaves the request anonymous and the
// failure is kept for Require to report on gated routes.
func Identify(decoder TokenDecoder, log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], bearerPrefix)) {
			c.Locals(tokenErrKey, apperr.Unauthorized("authorization header format must be 'Bearer <token>'"))
			return c.Next()
		}

		id, err := decoder.DecodeIdentity(strings.TrimSpace(parts[1]))
		if err != nil {
			log.WithError(err).WithField("path", c.Path()).Debug("token rejected")
			c.Locals(tokenErrKey, err)
			return c.Next()
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// Require enforces the role gate for a route.
func Require(required authz.RoleSet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := IdentityFrom(c)
		decision := authz.Authorize(id, required)
		if decision.Allowed {
			return c.Next()
		}

		switch decision.Reason {
		case authz.NoCredential:
			if err, ok := c.Locals(tokenErrKey).(error); ok && err != nil {
				return apperr.Unauthorized(apperr.Message(err))
			}
			return apperr.Unauthorized("authentication required")
		default:
			return apperr.Forbidden("insufficient permissions")
		}
	}
}

// IdentityFrom returns the caller identity, or nil for anonymous requests.
func IdentityFrom(c *fiber.Ctx) *models.Identity {
	id, _ := c.Locals(identityKey).(*models.Identity)
	return id
}
