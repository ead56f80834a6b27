package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/eReuse/DeviceWare/internal/config"
	"github.com/eReuse/DeviceWare/internal/database"
	"github.com/eReuse/DeviceWare/internal/export"
	"github.com/eReuse/DeviceWare/internal/handlers"
	"github.com/eReuse/DeviceWare/internal/hooks"
	"github.com/eReuse/DeviceWare/internal/logger"
	"github.com/eReuse/DeviceWare/internal/mailer"
	"github.com/eReuse/DeviceWare/internal/registry"
	"github.com/eReuse/DeviceWare/internal/routes"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL")); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := database.Connect(&cfg.Database, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger.Logger); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(&cfg.Database, logger.Logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Wire the event-forwarding pipeline. The worker starts lazily on
	// the first forwardable event.
	client := registry.NewClient(cfg.Server.BaseURL)
	provisioner := registry.NewDBProvisioner(db, logger.Logger)
	forwarder := registry.NewForwarder(&cfg.Registry, cfg.Server.BaseURL, client, provisioner, logger.Logger)

	mail := mailer.NewMailer(&cfg.SMTP, logger.Logger)
	runner := hooks.NewRunner(db, logger.Logger, mail, cfg.Server.BaseURL)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "DeviceWare",
		ServerHeader: "Fiber",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	routes.SetupRoutes(app, db, routes.Handlers{
		Health:   handlers.NewHealthHandler(db),
		Accounts: handlers.NewAccountsHandler(db, logger.Logger),
		Devices:  handlers.NewDevicesHandler(db, logger.Logger),
		Events:   handlers.NewEventsHandler(db, logger.Logger, runner, forwarder),
		Export:   export.NewHandler(db, logger.Logger),
	})

	// Start server in a goroutine
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Server starting",
			zap.String("address", addr),
		)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
