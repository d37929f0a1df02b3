package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"etalase/internal/metrics"
	"etalase/internal/models"
	"etalase/internal/repositories"
	"etalase/pkg/rabbitmq"
)

// OrderEventPublisher announces new orders to other systems.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event rabbitmq.OrderEvent) error
}

// CreateOrderInput is the payload of a new order. Lines and total are
// stored as submitted; they are not checked against the catalog.
type CreateOrderInput struct {
	Products    json.RawMessage `json:"products"`
	TotalAmount float64         `json:"totalAmount"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo repositories.OrderRepository
	userRepo  repositories.UserRepository
	publisher OrderEventPublisher // optional
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are emitted.
func NewOrderService(orderRepo repositories.OrderRepository, userRepo repositories.UserRepository, publisher OrderEventPublisher) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		userRepo:  userRepo,
		publisher: publisher,
	}
}

// Create records an order owned by accountID and returns its ID.
func (s *OrderService) Create(ctx context.Context, accountID uint, input CreateOrderInput) (uint, error) {
	if _, err := s.userRepo.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, fmt.Errorf("%w: account %d no longer exists", ErrInvalidToken, accountID)
		}
		return 0, storeError(err)
	}

	snapshot, lines, err := orderSnapshot(input.Products)
	if err != nil {
		return 0, err
	}

	order := &models.Order{
		UserID:      accountID,
		Products:    snapshot,
		TotalAmount: input.TotalAmount,
		Status:      models.OrderStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return 0, storeError(err)
	}
	metrics.OrdersCreated.Inc()
	slog.Info("order created", "order_id", order.ID, "user_id", accountID, "lines", lines, "total", order.TotalAmount)

	s.publishCreated(ctx, order, lines)
	return order.ID, nil
}

// orderSnapshot checks that raw is a JSON array (or null/absent, stored as
// an empty one) and returns it compacted, with the number of lines. The
// lines themselves are not inspected.
func orderSnapshot(raw json.RawMessage) (string, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "[]", 0, nil
	}
	var lines []json.RawMessage
	if err := json.Unmarshal(trimmed, &lines); err != nil {
		return "", 0, fmt.Errorf("%w: products must be an array", ErrValidation)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", 0, fmt.Errorf("%w: products: %v", ErrValidation, err)
	}
	return buf.String(), len(lines), nil
}

// ListForAccount returns the orders owned by accountID, newest first.
func (s *OrderService) ListForAccount(ctx context.Context, accountID uint) ([]OrderView, error) {
	orders, err := s.orderRepo.ListByUser(ctx, accountID)
	if err != nil {
		return nil, storeError(err)
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i]))
	}
	return views, nil
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order, lines int) {
	if s.publisher == nil {
		slog.Debug("order event publisher not configured, skipping publication", "order_id", order.ID)
		return
	}
	event := rabbitmq.OrderEvent{
		Type:        rabbitmq.OrderCreated,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Lines:       lines,
		CreatedAt:   order.CreatedAt,
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		slog.Warn("failed to publish order created event", "order_id", order.ID, "error", err.Error())
		return
	}
	slog.Debug("published order created event", "order_id", order.ID)
}
