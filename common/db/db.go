package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lyzr/registry/common/config"
	"github.com/lyzr/registry/common/logger"
)

// DB wraps pgxpool for the Postgres storage backend
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// New creates a new database connection pool
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	return Connect(ctx, cfg.DatabaseURL(), cfg.Storage.Postgres, log)
}

// Connect opens a pool for an explicit connection URL. Pool sizing comes from pg.
func Connect(ctx context.Context, url string, pg config.PostgresConfig, log *logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if pg.MaxConns > 0 {
		poolConfig.MaxConns = int32(pg.MaxConns)
	}
	if pg.MinConns > 0 {
		poolConfig.MinConns = int32(pg.MinConns)
	}
	if pg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = pg.MaxLifetime
	}
	if pg.MaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = pg.MaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connected", "host", poolConfig.ConnConfig.Host, "db", poolConfig.ConnConfig.Database)

	return &DB{
		Pool: pool,
		log:  log,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.log.Info("closing database connection pool")
	db.Pool.Close()
}

// Health checks database health
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.Pool.Ping(ctx)
}
