package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/eReuse/DeviceWare/internal/auth"
	"github.com/eReuse/DeviceWare/internal/export"
	"github.com/eReuse/DeviceWare/internal/handlers"
)

// Handlers bundles everything the router mounts
type Handlers struct {
	Health   *handlers.HealthHandler
	Accounts *handlers.AccountsHandler
	Devices  *handlers.DevicesHandler
	Events   *handlers.EventsHandler
	Export   *export.Handler
}

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, db *gorm.DB, h Handlers) {
	app.Get("/health", h.Health.HealthCheck)
	app.Post("/login", h.Accounts.Login)

	authenticated := app.Group("", auth.Middleware(db))
	authenticated.Post("/accounts", auth.RequireElevated(), h.Accounts.Create)

	// Tenant-scoped routes: the account must belong to :db
	tenant := authenticated.Group("/:db", auth.RequireDatabase())
	{
		tenant.Get("/devices", h.Devices.List)
		tenant.Post("/devices", h.Devices.Create)
		tenant.Get("/devices/:id", h.Devices.Get)
		tenant.Get("/events", h.Events.List)
		tenant.Post("/events", h.Events.Create)
		tenant.Get("/events/:id", h.Events.Get)
		tenant.Get("/export/devices", h.Export.Devices)
	}
}
