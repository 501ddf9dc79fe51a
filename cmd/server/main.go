package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/example/bakery/internal/config"
	"github.com/example/bakery/internal/database"
	"github.com/example/bakery/internal/handlers"
	"github.com/example/bakery/internal/logger"
	"github.com/example/bakery/internal/middleware"
	"github.com/example/bakery/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	if err := run(cfg, zapLog); err != nil {
		zapLog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLog *zap.Logger) error {
	db, err := database.Connect(cfg.DatabaseURL, cfg.DBLogLevel, zapLog)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := database.SeedAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		zapLog.Info("bootstrap admin created", zap.String("email", cfg.AdminEmail))
	}

	app := fiber.New(fiber.Config{
		AppName:      "Bakery Backend",
		ErrorHandler: handlers.ErrorHandler(zapLog),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(zapLog))

	if err := routes.Register(app, db, cfg, zapLog); err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		zapLog.Info("starting server", zap.String("port", cfg.AppPort))
		listenErr <- app.Listen(":" + cfg.AppPort)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	zapLog.Info("shutdown signal received")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	zapLog.Info("server stopped gracefully")
	return nil
}
