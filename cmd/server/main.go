package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flood-risk-aggregator/internal/api"
	"flood-risk-aggregator/internal/config"
	"flood-risk-aggregator/internal/observability"
	"flood-risk-aggregator/internal/scheduler"
	"flood-risk-aggregator/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger := newLogger(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Flood Risk Aggregator Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	service, err := services.NewService(cfg, metrics, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer service.Close()

	alertScheduler, err := scheduler.NewScheduler(
		service.Alerts,
		service.Cache,
		cfg.Scheduler.Provinces,
		cfg.Scheduler.Schedule,
		2*cfg.Assessment.Deadline,
		metrics,
		logger.Named("scheduler"),
	)
	if err != nil {
		logger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}

	app := newApp(cfg)

	// Setup handlers and routes
	handler := api.NewHandler(service, alertScheduler, logger.Named("api"))
	api.SetupRoutes(app, handler)

	alertScheduler.Start()

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	alertScheduler.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func newApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})
}

func newLogger(level string) *zap.Logger {
	build := zap.NewProduction
	if level == "debug" {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
