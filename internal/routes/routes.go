package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bakery/internal/config"
	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/handlers"
	"github.com/example/bakery/internal/middleware"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/repositories"
	"github.com/example/bakery/internal/services"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Products *handlers.ProductHandler
	Orders   *handlers.OrderHandler
	Admin    *handlers.AdminHandler
}

// Register builds repositories, services and handlers over db and wires up
// all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, log *zap.Logger) error {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	txRunner := database.NewTxRunner(db)

	productRepo := repositories.NewProductRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	userRepo := repositories.NewUserRepository(db)

	catalogService, err := services.NewCatalogService(productRepo, log)
	if err != nil {
		return err
	}
	importService, err := services.NewImportService(services.ImportServiceDeps{
		Products:   productRepo,
		UnitOfWork: txRunner,
		Logger:     log,
		BatchSize:  cfg.ImportBatchSize,
		BatchPause: cfg.ImportBatchPause,
	})
	if err != nil {
		return err
	}
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     orderRepo,
		Products:   productRepo,
		UnitOfWork: txRunner,
		Notifier:   telegramService,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	Mount(app, Handlers{
		Auth:     handlers.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.TokenExpires),
		Products: handlers.NewProductHandler(catalogService, importService),
		Orders:   handlers.NewOrderHandler(orderService),
		Admin:    handlers.NewAdminHandler(orderService),
	}, txRunner, cfg.JWTSecret)
	return nil
}

// Mount attaches h to app. Every /api request runs in its own transaction
// scoped to the caller.
func Mount(app *fiber.App, h Handlers, sessions middleware.TxRunner, jwtSecret string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	requireAuth := middleware.AuthMiddleware(jwtSecret)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	api := app.Group("/api", middleware.OptionalAuth(jwtSecret), middleware.Session(sessions))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Get("/me", requireAuth, h.Auth.Me)

	// Catalog
	api.Get("/categories", h.Products.ListCategories)
	h.Products.RegisterProductRoutes(api.Group("/products"), requireAuth, requireAdmin)

	// Protected routes
	orders := api.Group("/orders", requireAuth)
	orders.Post("/", h.Orders.CreateOrder)
	orders.Get("/", h.Orders.ListOrders)
	orders.Get("/:id", h.Orders.GetOrder)
	orders.Post("/:id/cancel", h.Orders.CancelOrder)

	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Get("/orders", h.Admin.ListAllOrders)
	admin.Patch("/orders/:id/status", h.Admin.UpdateOrderStatus)
}
