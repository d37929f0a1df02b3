package repositories

import (
	"context"

	"etalase/internal/models"
)

// OrderRepository defines the interface for order data access. Orders are
// append-only, so there is no update or delete.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, userID uint) ([]models.Order, error)
}
