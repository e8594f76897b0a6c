package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/cmd/registry/handlers"
	"github.com/lyzr/registry/cmd/registry/middleware"
)

// RegisterSettingsRoutes registers administrative settings routes
func RegisterSettingsRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewSettingsHandler(c)

	settings := e.Group("/api/v1/settings")
	settings.Use(middleware.ExtractCaller(c.Components.Config.Registry.IdentityHeader))
	{
		settings.GET("/last-id", h.GetLastID) // GET /api/v1/settings/last-id
		settings.PUT("/last-id", h.SetLastID) // PUT /api/v1/settings/last-id
	}
}

// RegisterHealthRoutes registers the health check endpoint
func RegisterHealthRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewHealthHandler(c)
	e.GET("/health", h.Health)
}
