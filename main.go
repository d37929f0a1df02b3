package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"etalase/internal/app"
	"etalase/internal/cache"
	"etalase/internal/config"
	"etalase/internal/database"
	"etalase/internal/logger"
	"etalase/internal/metrics"
	"etalase/internal/repositories"
	"etalase/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", logger.Err(err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// --- Database ---
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to open database", logger.Err(err))
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Error("failed to migrate database", logger.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedCatalog {
		if _, err := database.SeedProducts(ctx, repositories.NewGORMProductRepository(db)); err != nil {
			log.Warn("failed to seed catalog", logger.Err(err))
		}
	}

	deps := app.Dependencies{DB: db, AccessLog: os.Stdout}

	// --- Optional catalog cache ---
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, catalog cache disabled", logger.Err(err))
		} else {
			defer c.Close()
			deps.Cache = c
			log.Info("catalog cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		}
	}

	// --- Optional order events ---
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.OrderQueue})
		if err != nil {
			log.Warn("rabbitmq unavailable, order events disabled", logger.Err(err))
		} else {
			defer mqClient.Close()
			deps.Publisher = mqClient
			if err := mqClient.ConsumeOrderEvents(handleOrderEvent); err != nil {
				log.Error("failed to start order event consumer", logger.Err(err))
			}
		}
	}

	server := app.New(cfg, deps)

	go func() {
		log.Info("starting server", "addr", cfg.AppPort, "driver", cfg.DBDriver)
		if err := server.Listen(cfg.AppPort); err != nil {
			log.Error("server stopped", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during shutdown", logger.Err(err))
	}
	log.Info("server gracefully stopped")
}

// handleOrderEvent is the downstream side of the order queue. It only
// records the event; fulfilment is handled elsewhere.
func handleOrderEvent(event rabbitmq.OrderEvent) error {
	if event.Type != rabbitmq.OrderCreated {
		metrics.OrderEventsConsumed.WithLabelValues("ignored").Inc()
		slog.Warn("ignoring unknown order event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}
	metrics.OrderEventsConsumed.WithLabelValues("processed").Inc()
	slog.Info("order event received",
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"lines", event.Lines,
		"total_amount", event.TotalAmount,
	)
	return nil
}
