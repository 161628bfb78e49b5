package middleware

import (
	"errors"

	"kalm/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// statusOf predicts the response status. Errors returned down the chain are
// rendered by the app's error handler only after every middleware has returned.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.KindOf(err).Status()
}
