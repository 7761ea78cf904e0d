// Package response provides JSON response helpers and the mapping from
// domain error codes to HTTP statuses.
package response

import (
	"errors"

	domainerr "waypool/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"data": data,
	})
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": data,
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

// statusFor maps a domain error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case domainerr.CodeValidation:
		return fiber.StatusBadRequest
	case domainerr.CodePermissionDenied:
		return fiber.StatusForbidden
	case domainerr.CodeInsufficientFunds:
		return fiber.StatusPaymentRequired
	case domainerr.CodeConflict:
		return fiber.StatusConflict
	case domainerr.CodeNotFound:
		return fiber.StatusNotFound
	case domainerr.CodeGateway:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// DomainError renders err. Known domain errors keep their code, message and
// details; anything else becomes an opaque 500 so internals never leak.
func DomainError(c *fiber.Ctx, err error) error {
	var de *domainerr.DomainError
	if !errors.As(err, &de) {
		return ServerError(c, "internal server error")
	}
	body := fiber.Map{
		"error": de.Message,
		"code":  de.Code,
	}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	return c.Status(statusFor(de.Code)).JSON(body)
}
