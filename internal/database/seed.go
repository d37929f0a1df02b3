package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"etalase/internal/logger"
	"etalase/internal/models"
	"etalase/internal/repositories"
)

type sampleProduct struct {
	name        string
	brand       string
	price       float64
	description string
	preview     string
	photos      []string
	isAccessory bool
	category    string
	stock       int
}

var sampleCatalog = []sampleProduct{
	{
		name:        "Stylish T-Shirt",
		brand:       "Fashion Brand",
		price:       29.99,
		description: "Comfortable cotton t-shirt perfect for casual wear",
		preview:     "https://images.pexels.com/photos/1040945/pexels-photo-1040945.jpeg",
		photos: []string{
			"https://images.pexels.com/photos/1040945/pexels-photo-1040945.jpeg",
			"https://images.pexels.com/photos/1040424/pexels-photo-1040424.jpeg",
		},
		category: "clothing",
		stock:    50,
	},
	{
		name:        "Classic Jeans",
		brand:       "Denim Co",
		price:       79.99,
		description: "High-quality denim jeans with perfect fit",
		preview:     "https://images.pexels.com/photos/1598507/pexels-photo-1598507.jpeg",
		photos:      []string{"https://images.pexels.com/photos/1598507/pexels-photo-1598507.jpeg"},
		category:    "clothing",
		stock:       30,
	},
	{
		name:        "Leather Watch",
		brand:       "TimeKeeper",
		price:       199.99,
		description: "Elegant leather watch for professionals",
		preview:     "https://images.pexels.com/photos/190819/pexels-photo-190819.jpeg",
		photos:      []string{"https://images.pexels.com/photos/190819/pexels-photo-190819.jpeg"},
		isAccessory: true,
		category:    "accessories",
		stock:       25,
	},
}

// SeedProducts fills an empty catalog with the sample products and returns
// how many were inserted. A catalog that already has rows is left alone.
func SeedProducts(ctx context.Context, repo repositories.ProductRepository) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		slog.Debug("catalog already populated, skipping seed", "products", count)
		return 0, nil
	}

	inserted := 0
	for _, s := range sampleCatalog {
		photos, err := json.Marshal(s.photos)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode photos for %s: %w", s.name, err)
		}
		description, category := s.description, s.category
		product := &models.Product{
			Name:        s.name,
			Brand:       s.brand,
			Price:       s.price,
			Description: &description,
			Preview:     s.preview,
			Photos:      string(photos),
			IsAccessory: s.isAccessory,
			Category:    &category,
			Stock:       s.stock,
		}
		if err := repo.Create(ctx, product); err != nil {
			slog.Error("failed to seed product", "name", s.name, logger.Err(err))
			return inserted, err
		}
		slog.Info("seeded product", "name", product.Name, "id", product.ID)
		inserted++
	}
	return inserted, nil
}
