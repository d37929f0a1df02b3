package middleware

import (
	"log/slog"
	"strings"

	"etalase/internal/logger"
	"etalase/internal/services"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// AuthRequired is a Fiber middleware that admits only requests carrying a
// valid bearer token. A missing token is answered with 401, a token that
// fails verification with 403.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Access token required",
			})
		}

		claims, err := authService.VerifySession(tokenString)
		if err != nil {
			slog.Debug("token verification failed", "path", c.Path(), logger.Err(err))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals(identityKey, claims)
		return c.Next()
	}
}

// Identity returns the claims stored by AuthRequired, or nil on routes the
// gate does not cover.
func Identity(c *fiber.Ctx) *services.Claims {
	claims, _ := c.Locals(identityKey).(*services.Claims)
	return claims
}

// bearerToken extracts the credential from "Bearer <token>". Any other
// scheme still yields its second part so it is rejected by verification.
func bearerToken(header string) string {
	_, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
