package bootstrap

import (
	"github.com/lyzr/registry/common/config"
	"github.com/lyzr/registry/common/durable"
	"github.com/lyzr/registry/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	tables        []string
	skipRedis     bool
	skipCache     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	storeInitHook func(durable.Store) error
}

// WithTables declares the durable tables the service uses
func WithTables(tables ...string) Option {
	return func(o *options) {
		o.tables = append(o.tables, tables...)
	}
}

// WithoutRedis skips the Redis connection even if config asks for it
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithoutCache skips cache initialization
func WithoutCache() Option {
	return func(o *options) {
		o.skipCache = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithStoreInitHook runs a custom function after the store is opened
// Useful for seeding data or checking invariants before serving
func WithStoreInitHook(hook func(durable.Store) error) Option {
	return func(o *options) {
		o.storeInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}
