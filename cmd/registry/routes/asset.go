package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/cmd/registry/handlers"
	"github.com/lyzr/registry/cmd/registry/middleware"
	commonmw "github.com/lyzr/registry/common/middleware"
	"github.com/lyzr/registry/common/ratelimit"
)

// RegisterAssetRoutes registers owner and asset routes
func RegisterAssetRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAssetHandler(c)
	cfg := c.Components.Config

	api := e.Group("/api/v1")
	api.Use(middleware.ExtractCaller(cfg.Registry.IdentityHeader))
	api.GET("/owner", h.GetOwner) // GET /api/v1/owner

	var uploadLimits []echo.MiddlewareFunc
	if c.RateLimiter != nil {
		limit := ratelimit.NewActionConfig(ratelimit.ActionUpload, cfg.RateLimit.UploadsPerMinute)
		uploadLimits = append(uploadLimits, commonmw.CallerRateLimitMiddleware(c.RateLimiter, limit, middleware.CallerString))
	}

	assets := api.Group("/assets")
	{
		assets.GET("", h.ListAssets)                 // GET /api/v1/assets?filter=...
		assets.GET("/count", h.CountAssets)          // GET /api/v1/assets/count
		assets.GET("/:id", h.GetAsset)               // GET /api/v1/assets/img-1
		assets.POST("", h.AddAsset, uploadLimits...) // POST /api/v1/assets?prefix=img-
		assets.DELETE("/:id", h.DeleteAsset)         // DELETE /api/v1/assets/img-1
	}
}
