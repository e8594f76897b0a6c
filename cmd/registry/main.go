package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/cmd/registry/repository"
	"github.com/lyzr/registry/cmd/registry/routes"
	"github.com/lyzr/registry/common/bootstrap"
	"github.com/lyzr/registry/common/logger"
	"github.com/lyzr/registry/common/server"
)

// maxBodySize bounds a single upload; assets are stored as one blob
const maxBodySize = "64M"

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, store, redis, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "registry", bootstrap.WithTables(repository.Tables()...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap registry: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer, err := container.NewContainer(ctx, components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	registerRoutes(e, serviceContainer)

	startServer(ctx, e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, requestID string) {
			ctx := logger.ContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(middleware.Logger())
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterHealthRoutes(e, serviceContainer)
	routes.RegisterAssetRoutes(e, serviceContainer)
	routes.RegisterSettingsRoutes(e, serviceContainer)
}

// startServer serves until a shutdown signal arrives
func startServer(ctx context.Context, e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	srv := server.New("registry", port, e, components.Logger)

	if err := srv.Start(ctx); err != nil {
		components.Logger.Error("server error", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}
}
