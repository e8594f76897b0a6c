package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/cmd/registry/middleware"
	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/cmd/registry/service"
	"github.com/lyzr/registry/common/logger"
)

// AssetHandler handles asset requests
type AssetHandler struct {
	registry *service.RegistryService
	log      *logger.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(c *container.Container) *AssetHandler {
	return &AssetHandler{
		registry: c.Registry,
		log:      c.Components.Logger,
	}
}

// GetOwner returns the service owner
// GET /api/v1/owner
func (h *AssetHandler) GetOwner(c echo.Context) error {
	owner, err := h.registry.GetOwner(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"owner": owner,
	})
}

// GetAsset retrieves one asset; absence is a 404 with a null asset
// GET /api/v1/assets/:id
func (h *AssetHandler) GetAsset(c echo.Context) error {
	id := c.Param("id")

	asset, err := h.registry.GetAsset(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}

	status := http.StatusOK
	if asset == nil {
		status = http.StatusNotFound
	}

	return c.JSON(status, map[string]interface{}{
		"id":    id,
		"asset": asset,
	})
}

// ListAssets lists assets, optionally filtered by a CEL expression
// GET /api/v1/assets?filter=owner=="alice"
func (h *AssetHandler) ListAssets(c echo.Context) error {
	caller, err := middleware.RequireCaller(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	assets, err := h.registry.GetAllAssets(c.Request().Context(), caller, c.QueryParam("filter"))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
	})
}

// CountAssets returns the number of stored assets
// GET /api/v1/assets/count
func (h *AssetHandler) CountAssets(c echo.Context) error {
	caller, err := middleware.RequireCaller(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	n, err := h.registry.GetAssetsLength(c.Request().Context(), caller)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count": n,
	})
}

// AddAsset uploads an asset owned by the caller
// POST /api/v1/assets?prefix=img-
// Body: {"owner": "...", "content": "<base64>", "file_name": "..."}
func (h *AssetHandler) AddAsset(c echo.Context) error {
	caller, err := middleware.RequireCaller(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var asset models.Asset
	if err := c.Bind(&asset); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	id, err := h.registry.AddAsset(c.Request().Context(), caller, &asset, c.QueryParam("prefix"))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id": id,
	})
}

// DeleteAsset removes an asset
// DELETE /api/v1/assets/:id
func (h *AssetHandler) DeleteAsset(c echo.Context) error {
	caller, err := middleware.RequireCaller(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	msg, err := h.registry.DeleteAsset(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": msg,
	})
}
