package handlers

import (
	"context"
	"log/slog"
	"time"

	"etalase/internal/logger"

	"github.com/gofiber/fiber/v2"
)

// ProductCounter reports how many products the catalog holds.
type ProductCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthHandler reports whether the catalog store is reachable.
type HealthHandler struct {
	products ProductCounter
}

func NewHealthHandler(products ProductCounter) *HealthHandler {
	return &HealthHandler{products: products}
}

func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.HandleHealth)
}

// HandleHealth answers 200 with the product count, or 503 when the store
// cannot be queried.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	now := time.Now().UTC().Format(time.RFC3339)
	count, err := h.products.Count(c.UserContext())
	if err != nil {
		slog.Error("health check failed", logger.Err(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"time":   now,
		})
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"time":     now,
		"products": count,
	})
}
