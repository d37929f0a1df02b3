package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"etalase/internal/repositories"
	"etalase/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service *services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the product routes. Reads are public; writes go
// through auth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/products", h.HandleListProducts)
	router.Get("/products/:id", h.HandleGetProduct)
	router.Post("/products", auth, h.HandleCreateProduct)
	router.Put("/products/:id", auth, h.HandleUpdateProduct)
	router.Delete("/products/:id", auth, h.HandleDeleteProduct)
}

// HandleListProducts returns the products matching the query filters.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	filter, err := parseProductFilter(c)
	if err != nil {
		return err
	}

	products, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// HandleGetProduct returns a single product.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	product, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleCreateProduct adds a product to the catalog.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var input services.ProductInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(err)
	}

	id, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"id":      id,
	})
}

// HandleUpdateProduct replaces every field of an existing product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	var input services.ProductInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(err)
	}

	if err := h.service.Update(c.UserContext(), id, input); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
	})
}

// HandleDeleteProduct removes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
	})
}

// productID parses the :id parameter. An id that is not a number cannot
// name a product, so it is reported as not found.
func productID(c *fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("product %q %w", raw, services.ErrNotFound)
	}
	return uint(id), nil
}

func parseProductFilter(c *fiber.Ctx) (repositories.ProductFilter, error) {
	filter := repositories.ProductFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Category: c.Query("category"),
	}

	if raw := c.Query("isAccessory"); raw != "" {
		// Anything ParseBool rejects counts as false.
		v, _ := strconv.ParseBool(raw)
		filter.IsAccessory = &v
	}

	var err error
	if filter.MinPrice, err = priceParam(c, "minPrice"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = priceParam(c, "maxPrice"); err != nil {
		return filter, err
	}
	return filter, nil
}

func priceParam(c *fiber.Ctx, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", services.ErrValidation, name)
	}
	return &v, nil
}
