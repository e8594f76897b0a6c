package bootstrap

import (
	"context"
	"fmt"

	"github.com/lyzr/registry/common/cache"
	"github.com/lyzr/registry/common/config"
	"github.com/lyzr/registry/common/durable"
	"github.com/lyzr/registry/common/logger"
	"github.com/lyzr/registry/common/redis"
	"github.com/lyzr/registry/common/telemetry"
)

// Components holds all initialized service dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	Store     durable.Store
	Redis     *redis.Client
	Cache     cache.Cache
	Telemetry *telemetry.Telemetry

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errors []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errors = append(errors, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	c.cleanupFuncs = nil

	if len(errors) > 0 {
		return fmt.Errorf("shutdown errors: %v", errors)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components
func (c *Components) Health(ctx context.Context) error {
	if c.Store != nil {
		if err := c.Store.Ping(ctx); err != nil {
			return fmt.Errorf("store unhealthy: %w", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
