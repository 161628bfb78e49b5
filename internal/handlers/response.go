package handlers

import (
	"errors"
	"fmt"

	"kalm/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// validationError carries per-field messages for a rejected request body.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	return "validation failed"
}

// bind parses the JSON body into out and validates it.
func bind(c *fiber.Ctx, validate *validator.Validate, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid request body", err)
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperr.Wrap(apperr.KindInvalidInput, "invalid request body", err)
		}
		fields := make(map[string]string, len(verrs))
		for _, e := range verrs {
			fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return &validationError{fields: fields}
	}
	return nil
}

// ErrorHandler renders every error that reaches Fiber as a {msg} envelope.
// Unclassified errors are logged in full and reported as a generic 500.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var verr *validationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"msg":    verr.Error(),
				"errors": verr.fields,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"msg": fe.Message})
		}

		kind := apperr.KindOf(err)
		if kind == apperr.KindInternal {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("unhandled error")
		}
		return c.Status(kind.Status()).JSON(fiber.Map{"msg": apperr.Message(err)})
	}
}

// NotFound is the fallback for unknown routes.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"msg": "endpoint not found"})
}
