package handlers

import (
	"etalase/internal/middleware"
	"etalase/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service: service,
	}
}

// RegisterRoutes registers the order routes. Every order route requires
// auth.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/orders", auth, h.HandleGetOrders)
	router.Post("/orders", auth, h.HandleCreateOrder)
}

// HandleGetOrders lists the caller's own orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	if identity == nil {
		return services.ErrInvalidToken
	}

	orders, err := h.service.ListForAccount(c.UserContext(), identity.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

// HandleCreateOrder records an order for the caller.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	identity := middleware.Identity(c)
	if identity == nil {
		return services.ErrInvalidToken
	}

	var input services.CreateOrderInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(err)
	}

	orderID, err := h.service.Create(c.UserContext(), identity.AccountID, input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Order created successfully",
		"orderId": orderID,
	})
}
