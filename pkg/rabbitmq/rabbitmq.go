// Package rabbitmq publishes and consumes order events over AMQP.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
)

// DefaultQueue is used when Config.Queue is empty.
const DefaultQueue = "order_queue"

// OrderCreated is the type of the event emitted after an order is stored.
const OrderCreated = "order.created"

// OrderEvent is the JSON body of every message on the order queue.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     uint      `json:"orderId"`
	UserID      uint      `json:"userId"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"totalAmount"`
	Lines       int       `json:"lines"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrChannelClosed is returned when the client has no usable channel.
var ErrChannelClosed = errors.New("rabbitmq channel is not available")

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mu      sync.Mutex // guards publishes on channel
}

// NewClient connects to RabbitMQ, opens a channel and declares the durable
// order queue.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareQueue(ch, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	slog.Info("rabbitmq client connected", "queue", cfg.Queue)

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare %s: %w", name, err)
	}
	return q, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PublishOrderEvent sends event to the order queue as a persistent JSON
// message.
func (c *Client) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.channel == nil {
		return ErrChannelClosed
	}

	msg, err := NewPublishing(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// NewPublishing encodes event into a persistent AMQP message.
func NewPublishing(event OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         event.Type,
		MessageId:    uuid.NewString(),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}, nil
}

// ConsumeOrderEvents starts a goroutine that hands every order event to
// handler. Messages are acked when handler returns nil and requeued when
// it fails; bodies that are not valid events are dropped.
func (c *Client) ConsumeOrderEvents(handler func(OrderEvent) error) error {
	if c.channel == nil {
		return ErrChannelClosed
	}

	queue, err := declareQueue(c.channel, c.queue)
	if err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("waiting for order events", "queue", queue.Name)

	go func() {
		for msg := range msgs {
			HandleDelivery(msg, handler)
		}
		slog.Info("order event consumer stopped", "queue", queue.Name)
	}()

	return nil
}

// HandleDelivery decodes one delivery, runs handler on it and settles the
// message.
func HandleDelivery(msg amqp.Delivery, handler func(OrderEvent) error) {
	var event OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("dropping malformed order event", "delivery_tag", msg.DeliveryTag, "error", err.Error())
		if nackErr := msg.Nack(false, false); nackErr != nil {
			slog.Error("failed to nack message", "delivery_tag", msg.DeliveryTag, "error", nackErr.Error())
		}
		return
	}

	if err := handler(event); err != nil {
		slog.Error("failed to process order event", "delivery_tag", msg.DeliveryTag, "order_id", event.OrderID, "error", err.Error())
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			slog.Error("failed to nack message", "delivery_tag", msg.DeliveryTag, "error", nackErr.Error())
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		slog.Error("failed to ack message", "delivery_tag", msg.DeliveryTag, "error", ackErr.Error())
	}
}
