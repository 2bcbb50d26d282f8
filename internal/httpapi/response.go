package httpapi

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// respondWithError sends a JSON error response.
func respondWithError(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}

// respondWithJSON sends a JSON success response.
func respondWithJSON(c *fiber.Ctx, statusCode int, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// formatValidationErrors flattens validator/v10 errors into messages.
func formatValidationErrors(err error) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		element := fmt.Sprintf("Field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			element = fmt.Sprintf("%s (value: %s)", element, fe.Param())
		}
		out = append(out, element)
	}
	return out
}
