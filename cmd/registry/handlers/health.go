package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/common/bootstrap"
)

// HealthHandler reports component health
type HealthHandler struct {
	components *bootstrap.Components
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(c *container.Container) *HealthHandler {
	return &HealthHandler{
		components: c.Components,
	}
}

// Health checks the store and, when configured, Redis
// GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	if err := h.components.Health(c.Request().Context()); err != nil {
		h.components.Logger.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": h.components.Config.Service.Name,
			"error":   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.components.Config.Service.Name,
	})
}
