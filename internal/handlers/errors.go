package handlers

import (
	"errors"
	"log/slog"

	"etalase/internal/logger"
	"etalase/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler turns errors returned by handlers into a JSON body of the
// form {"message": "..."} with the matching status code.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, msg := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			logger.Err(err),
		)
	}
	return c.Status(code).JSON(fiber.Map{"message": msg})
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusForbidden, "Invalid or expired token"
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func invalidBody(err error) error {
	slog.Debug("rejecting malformed request body", logger.Err(err))
	return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
}
