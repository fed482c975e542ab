package response

import (
	"errors"

	domainerr "rigshare/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

// Domain maps a taxonomy error onto the matching HTTP status. Unknown
// errors become a 500 without leaking internals.
func Domain(c *fiber.Ctx, err error) error {
	var de *domainerr.DomainError
	if !errors.As(err, &de) {
		return ServerError(c, "internal error")
	}

	status := fiber.StatusInternalServerError
	switch de.Code {
	case "VALIDATION_ERROR":
		status = fiber.StatusBadRequest
	case "ACCESS_DENIED":
		status = fiber.StatusForbidden
	case "NOT_FOUND":
		status = fiber.StatusNotFound
	case "DUPLICATE", "CONFLICT":
		status = fiber.StatusConflict
	case "INVALID_STATE", "LIMIT_EXCEEDED":
		status = fiber.StatusUnprocessableEntity
	case "EXTERNAL_SERVICE":
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{
		"error": de.Message,
		"code":  de.Code,
	})
}
