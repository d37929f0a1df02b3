package repositories

import (
	"context"

	"etalase/internal/models"
)

// ProductFilter narrows a catalog listing. Zero values mean "no filter";
// pointer fields distinguish an absent bound from a zero one.
type ProductFilter struct {
	Search      string
	Category    string
	IsAccessory *bool
	MinPrice    *float64
	MaxPrice    *float64
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}
