package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lyzr/registry/common/cache"
	"github.com/lyzr/registry/common/config"
	"github.com/lyzr/registry/common/db"
	"github.com/lyzr/registry/common/durable"
	"github.com/lyzr/registry/common/logger"
	"github.com/lyzr/registry/common/redis"
	"github.com/lyzr/registry/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)
	components.Logger.Debug("host info", telemetry.CaptureHostInfo().LogAttrs()...)

	// 3. Open the durable store
	components.Store, err = openStore(ctx, components.Config, components.Logger, options.tables)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	components.addCleanup(func() error {
		components.Logger.Info("closing store")
		return components.Store.Close()
	})

	if options.storeInitHook != nil {
		components.Logger.Info("running store init hook")
		if err := options.storeInitHook(components.Store); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("store init hook failed: %w", err)
		}
	}

	// 4. Connect to Redis when the cache or rate limiter needs it
	if components.Config.NeedsRedis() && !options.skipRedis {
		components.Logger.Info("connecting to redis", "addr", components.Config.RedisAddr())
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     components.Config.RedisAddr(),
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		})
		components.Redis = redis.NewClient(rdb, components.Logger)

		if err := components.Redis.Ping(ctx); err != nil {
			_ = rdb.Close()
			components.Redis = nil
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize cache (if not skipped)
	if !options.skipCache && components.Config.Cache.Enabled {
		components.Logger.Info("initializing cache",
			"backend", components.Config.Cache.Backend,
			"ttl", components.Config.Cache.DefaultTTL,
		)

		if components.Config.Cache.Backend == config.CacheRedis && components.Redis != nil {
			components.Cache = cache.NewRedisCache(components.Redis, serviceName+":cache:", components.Logger)
		} else {
			if components.Config.Cache.Backend == config.CacheRedis {
				components.Logger.Warn("redis cache requested without redis, using memory cache")
			}
			mc, err := cache.NewMemoryCache(cache.MemoryConfig{
				MaxEntries: components.Config.Cache.MaxEntries,
				MaxBytes:   components.Config.Cache.MaxBytes,
			}, components.Logger)
			if err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to create memory cache: %w", err)
			}
			components.Cache = mc
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 6. Initialize telemetry (if not skipped); pprof only when enabled
	if !options.skipTelemetry {
		pprofPort := 0
		if components.Config.Telemetry.EnablePprof {
			pprofPort = components.Config.Telemetry.PprofPort
		}

		components.Logger.Info("initializing telemetry", "pprof", pprofPort > 0)
		components.Telemetry = telemetry.New(pprofPort, components.Logger)

		if err := components.Telemetry.Start(ctx); err != nil {
			// Don't fail startup if telemetry fails
			components.Logger.Warn("failed to start telemetry", "error", err)
		} else {
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"storage", components.Config.Storage.Backend,
		"redis", components.Redis != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger, tables []string) (durable.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		log.Info("connecting to database")
		database, err := db.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store, err := durable.OpenPostgres(ctx, database, tables...)
		if err != nil {
			database.Close()
			return nil, err
		}
		return store, nil

	default:
		log.Info("opening sqlite store", "path", cfg.Storage.SQLitePath)
		return durable.OpenSQLite(cfg.Storage.SQLitePath, tables...)
	}
}
