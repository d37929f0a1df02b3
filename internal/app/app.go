// Package app assembles the HTTP application from its services.
package app

import (
	"io"

	"etalase/internal/config"
	"etalase/internal/handlers"
	"etalase/internal/metrics"
	"etalase/internal/middleware"
	"etalase/internal/repositories"
	"etalase/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"gorm.io/gorm"
)

// Dependencies are the external resources the application runs on. Cache
// and Publisher are optional.
type Dependencies struct {
	DB        *gorm.DB
	Cache     services.Cache
	Publisher services.OrderEventPublisher
	AccessLog io.Writer
}

// New wires repositories, services and handlers into a fiber app.
func New(cfg *config.Config, deps Dependencies) *fiber.App {
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	productRepo := repositories.NewGORMProductRepository(deps.DB)
	orderRepo := repositories.NewGORMOrderRepository(deps.DB)

	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	productService := services.NewProductService(productRepo)
	if deps.Cache != nil {
		productService.WithCache(deps.Cache, cfg.CacheTTL)
	}
	orderService := services.NewOrderService(orderRepo, userRepo, deps.Publisher)

	app := fiber.New(fiber.Config{
		AppName:      "etalase",
		ErrorHandler: handlers.ErrorHandler,
	})

	middleware.SetupMiddleware(app, middleware.Options{
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    deps.AccessLog,
	})

	handlers.NewHealthHandler(productService).RegisterRoutes(app)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	auth := middleware.AuthRequired(authService)
	api := app.Group("/api")
	handlers.NewAuthHandler(authService).RegisterRoutes(api)
	handlers.NewProductHandler(productService).RegisterRoutes(api, auth)
	handlers.NewOrderHandler(orderService).RegisterRoutes(api, auth)

	return app
}
