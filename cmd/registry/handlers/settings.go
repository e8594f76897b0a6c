package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/cmd/registry/middleware"
	"github.com/lyzr/registry/cmd/registry/service"
	"github.com/lyzr/registry/common/logger"
)

// SettingsHandler handles administrative settings
type SettingsHandler struct {
	registry *service.RegistryService
	log      *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(c *container.Container) *SettingsHandler {
	return &SettingsHandler{
		registry: c.Registry,
		log:      c.Components.Logger,
	}
}

// GetLastID returns the last issued id suffix
// GET /api/v1/settings/last-id
func (h *SettingsHandler) GetLastID(c echo.Context) error {
	caller, err := middleware.RequireCaller(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	last, err := h.registry.GetLastID(c.Request().Context(), caller)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"last_id": last,
	})
}

// SetLastID overrides the id counter
// PUT /api/v1/settings/last-id
// Body: {"last_id": "42"}
func (h *SettingsHandler) SetLastID(c echo.Context) error {
	caller, err := middleware.RequireCaller(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var req struct {
		LastID string `json:"last_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	if err := h.registry.SetLastID(c.Request().Context(), caller, req.LastID); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"last_id": req.LastID,
	})
}
