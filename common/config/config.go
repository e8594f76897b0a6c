package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Identifier allocation strategies
const (
	StrategyCounter = "counter"
	StrategyCount   = "count"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Storage   StorageConfig
	Registry  RegistryConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int    `env:"PORT"        envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"   envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"  envDefault:"text"`
}

// StorageConfig selects and configures the durable map backend
type StorageConfig struct {
	Backend    string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH"     envDefault:"registry.db"`
	Postgres   PostgresConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host        string        `env:"POSTGRES_HOST"          envDefault:"localhost"`
	Port        int           `env:"POSTGRES_PORT"          envDefault:"5432"`
	Database    string        `env:"POSTGRES_DB"            envDefault:"registry"`
	User        string        `env:"POSTGRES_USER"          envDefault:"registry"`
	Password    string        `env:"POSTGRES_PASSWORD"      envDefault:"registry"`
	MaxConns    int           `env:"POSTGRES_MAX_CONNS"     envDefault:"10"`
	MinConns    int           `env:"POSTGRES_MIN_CONNS"     envDefault:"1"`
	MaxIdleTime time.Duration `env:"POSTGRES_MAX_IDLE_TIME" envDefault:"30m"`
	MaxLifetime time.Duration `env:"POSTGRES_MAX_LIFETIME"  envDefault:"1h"`
}

// RegistryConfig holds the registry policy knobs
type RegistryConfig struct {
	// Owner is the service owner identity persisted on first start
	Owner string `env:"REGISTRY_OWNER"`

	IDStrategy         string `env:"REGISTRY_ID_STRATEGY"        envDefault:"counter"`
	AllowOwnerDelete   bool   `env:"REGISTRY_ALLOW_OWNER_DELETE" envDefault:"true"`
	IdentityHeader     string `env:"REGISTRY_IDENTITY_HEADER"    envDefault:"X-Caller-ID"`
	MaxFilterCacheSize int    `env:"REGISTRY_FILTER_CACHE_SIZE"  envDefault:"128"`
}

// CacheConfig holds asset cache settings
type CacheConfig struct {
	Enabled    bool          `env:"CACHE_ENABLED"     envDefault:"true"`
	Backend    string        `env:"CACHE_BACKEND"     envDefault:"memory"`
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL" envDefault:"1h"`

	// Memory backend bounds
	MaxEntries int   `env:"CACHE_MAX_ENTRIES" envDefault:"1024"`
	MaxBytes   int64 `env:"CACHE_MAX_BYTES"   envDefault:"268435456"`

	// Assets with more content bytes than this are never cached
	MaxAssetBytes int64 `env:"CACHE_MAX_ASSET_BYTES" envDefault:"1048576"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `env:"REDIS_HOST"     envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT"     envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
}

// RateLimitConfig holds per-caller upload limits
type RateLimitConfig struct {
	Enabled          bool  `env:"RATE_LIMIT_ENABLED"            envDefault:"false"`
	UploadsPerMinute int64 `env:"RATE_LIMIT_UPLOADS_PER_MINUTE" envDefault:"60"`
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool `env:"ENABLE_PPROF" envDefault:"false"`
	PprofPort   int  `env:"PPROF_PORT"   envDefault:"6060"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Service.Name = serviceName

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case BackendPostgres:
		if c.Storage.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Storage.Postgres.MaxConns < c.Storage.Postgres.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Registry.Owner == "" {
		return fmt.Errorf("registry owner is required")
	}

	switch c.Registry.IDStrategy {
	case StrategyCounter, StrategyCount:
	default:
		return fmt.Errorf("unknown id strategy: %s", c.Registry.IDStrategy)
	}

	if c.Registry.IdentityHeader == "" {
		return fmt.Errorf("identity header is required")
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case CacheMemory, CacheRedis:
		default:
			return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
		}
		if c.Cache.MaxEntries < 0 || c.Cache.MaxBytes < 0 || c.Cache.MaxAssetBytes < 0 {
			return fmt.Errorf("cache limits must not be negative")
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.UploadsPerMinute <= 0 {
		return fmt.Errorf("uploads per minute must be positive")
	}

	return nil
}

// NeedsRedis reports whether any enabled component talks to Redis
func (c *Config) NeedsRedis() bool {
	return (c.Cache.Enabled && c.Cache.Backend == CacheRedis) || c.RateLimit.Enabled
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	pg := c.Storage.Postgres
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		pg.User,
		pg.Password,
		pg.Host,
		pg.Port,
		pg.Database,
	)
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
