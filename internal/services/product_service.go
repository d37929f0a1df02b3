package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"etalase/internal/metrics"
	"etalase/internal/models"
	"etalase/internal/repositories"

	"github.com/go-playground/validator/v10"
)

const (
	productCachePrefix = "products:"
	defaultCacheTTL    = time.Minute
)

// Cache is the subset of the catalog cache the product service needs.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// ProductInput is the payload for creating or replacing a product.
type ProductInput struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Brand       string   `json:"brand" validate:"required,max=255"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Description *string  `json:"description"`
	Preview     string   `json:"preview" validate:"required"`
	Photos      []string `json:"photos"`
	IsAccessory FlexBool `json:"isAccessory"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	validate *validator.Validate
	cache    Cache
	cacheTTL time.Duration
}

// NewProductService creates a new ProductService without a cache.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo:     repo,
		validate: newValidator(),
	}
}

// WithCache enables caching of listings and single-item reads.
func (s *ProductService) WithCache(cache Cache, ttl time.Duration) *ProductService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// List returns the products matching filter, newest first. No match is an
// empty slice, not an error.
func (s *ProductService) List(ctx context.Context, filter repositories.ProductFilter) ([]ProductView, error) {
	key := listCacheKey(filter)
	var cached []ProductView
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	views := make([]ProductView, 0, len(products))
	for i := range products {
		views = append(views, newProductView(&products[i]))
	}

	s.cacheSet(ctx, key, views)
	return views, nil
}

// GetByID returns a single product.
func (s *ProductService) GetByID(ctx context.Context, id uint) (*ProductView, error) {
	key := itemCacheKey(id)
	var cached ProductView
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("product %d %w", id, ErrNotFound)
		}
		return nil, storeError(err)
	}
	view := newProductView(product)

	s.cacheSet(ctx, key, view)
	return &view, nil
}

// Create validates and stores a new product, returning its ID.
func (s *ProductService) Create(ctx context.Context, input ProductInput) (uint, error) {
	product, err := s.toModel(input)
	if err != nil {
		return 0, err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return 0, storeError(err)
	}
	s.invalidate(ctx)
	slog.Info("product created", "product_id", product.ID, "name", product.Name)
	return product.ID, nil
}

// Update replaces every mutable field of the product. Optional fields left
// out of input are cleared.
func (s *ProductService) Update(ctx context.Context, id uint, input ProductInput) error {
	product, err := s.toModel(input)
	if err != nil {
		return err
	}
	product.ID = id
	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("product %d %w", id, ErrNotFound)
		}
		return storeError(err)
	}
	s.invalidate(ctx)
	slog.Info("product updated", "product_id", id)
	return nil
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("product %d %w", id, ErrNotFound)
		}
		return storeError(err)
	}
	s.invalidate(ctx)
	slog.Info("product deleted", "product_id", id)
	return nil
}

// Count returns the number of products in the catalog.
func (s *ProductService) Count(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, storeError(err)
	}
	return count, nil
}

func (s *ProductService) toModel(input ProductInput) (*models.Product, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	photos, err := encodePhotos(input.Photos)
	if err != nil {
		return nil, fmt.Errorf("%w: photos: %v", ErrValidation, err)
	}
	stock := 0
	if input.Stock != nil {
		stock = *input.Stock
	}
	return &models.Product{
		Name:        input.Name,
		Brand:       input.Brand,
		Price:       *input.Price,
		Description: input.Description,
		Preview:     input.Preview,
		Photos:      photos,
		IsAccessory: bool(input.IsAccessory),
		Category:    input.Category,
		Stock:       stock,
	}, nil
}

func (s *ProductService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		slog.Warn("catalog cache read failed", "key", key, "error", err.Error())
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

func (s *ProductService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		slog.Warn("catalog cache write failed", "key", key, "error", err.Error())
	}
}

func (s *ProductService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, productCachePrefix); err != nil {
		slog.Warn("catalog cache invalidation failed", "error", err.Error())
	}
}

func listCacheKey(f repositories.ProductFilter) string {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.IsAccessory != nil {
		q.Set("isAccessory", strconv.FormatBool(*f.IsAccessory))
	}
	if f.MinPrice != nil {
		q.Set("minPrice", strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	return productCachePrefix + "list:" + q.Encode()
}

func itemCacheKey(id uint) string {
	return productCachePrefix + "item:" + strconv.FormatUint(uint64(id), 10)
}
