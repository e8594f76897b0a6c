package container

import (
	"context"
	"fmt"

	"github.com/lyzr/registry/cmd/registry/models"
	"github.com/lyzr/registry/cmd/registry/service"
	"github.com/lyzr/registry/common/bootstrap"
	"github.com/lyzr/registry/common/ratelimit"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Services
	Gate     *service.AccessGate
	Registry *service.RegistryService

	// RateLimiter is nil unless rate limiting is enabled and Redis is up
	RateLimiter *ratelimit.RateLimiter
}

// NewContainer wires the registry and runs its one-time Init with the
// configured owner
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	alloc, err := service.NewAllocator(cfg.Registry.IDStrategy)
	if err != nil {
		return nil, err
	}

	filters, err := service.NewFilterEvaluator(cfg.Registry.MaxFilterCacheSize)
	if err != nil {
		return nil, err
	}

	registryCfg := service.RegistryConfig{
		AllowServiceOwnerDelete: cfg.Registry.AllowOwnerDelete,
		CacheTTL:                cfg.Cache.DefaultTTL,
		CacheMaxAssetBytes:      cfg.Cache.MaxAssetBytes,
	}
	// timings are recorded whether or not pprof is served
	if components.Telemetry != nil {
		registryCfg.Recorder = components.Telemetry
	}

	gate := service.NewAccessGate()
	registry := service.NewRegistryService(
		components.Store,
		gate,
		alloc,
		components.Cache,
		filters,
		registryCfg,
		components.Logger,
	)

	if err := registry.Init(ctx, models.Principal(cfg.Registry.Owner)); err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
	}

	return &Container{
		Components:  components,
		Gate:        gate,
		Registry:    registry,
		RateLimiter: limiter,
	}, nil
}
