package durable

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lyzr/registry/common/db"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists tables in a Postgres database.
// Atomic runs at SERIALIZABLE so concurrent replicas cannot interleave
// read-modify-write sequences; a conflicting commit surfaces as an error.
type PostgresStore struct {
	db     *db.DB
	tables map[string]struct{}
	closed atomic.Bool
}

// OpenPostgres ensures every table exists and takes ownership of the pool
func OpenPostgres(ctx context.Context, database *db.DB, tables ...string) (*PostgresStore, error) {
	names, err := validateTableNames(tables)
	if err != nil {
		return nil, err
	}

	for name := range names {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (key TEXT PRIMARY KEY, value BYTEA)`, name)
		if _, err := database.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
	}

	return &PostgresStore{
		db:     database,
		tables: names,
	}, nil
}

// Table returns the named table bound to the pool
func (s *PostgresStore) Table(name string) Table {
	if _, ok := s.tables[name]; !ok {
		return missingTable{name: name}
	}
	return &pgTable{name: name, q: s.db, store: s}
}

// Atomic runs fn inside one serializable transaction
func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.runTx(ctx, func(q pgQuerier) error {
		return fn(&pgTx{q: q, store: s})
	})
}

// Ping checks the pool
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Health(ctx)
}

// Close closes the underlying pool
func (s *PostgresStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.db.Close()
	return nil
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(q pgQuerier) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	q     pgQuerier
	store *PostgresStore
}

func (t *pgTx) Table(name string) Table {
	if _, ok := t.store.tables[name]; !ok {
		return missingTable{name: name}
	}
	return &pgTable{name: name, q: t.q, store: t.store, inTx: true}
}

type pgTable struct {
	name  string
	q     pgQuerier
	store *PostgresStore
	inTx  bool
}

func (t *pgTable) check() error {
	if t.store.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (t *pgTable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}
	return pgGet(ctx, t.q, t.name, key, false)
}

func (t *pgTable) Put(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}
	if t.inTx {
		return pgPut(ctx, t.q, t.name, key, value)
	}

	var (
		prev     []byte
		replaced bool
	)
	err := t.store.runTx(ctx, func(q pgQuerier) error {
		var err error
		prev, replaced, err = pgPut(ctx, q, t.name, key, value)
		return err
	})
	return prev, replaced, err
}

func (t *pgTable) Delete(ctx context.Context, key string) ([]byte, bool, error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`DELETE FROM "%s" WHERE key = $1 RETURNING value`, t.name)

	var value []byte
	err := t.q.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("delete %s/%s: %w", t.name, key, err)
	}
	return value, true, nil
}

func (t *pgTable) Count(ctx context.Context) (uint64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, t.name)
	if err := t.q.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return uint64(n), nil
}

func (t *pgTable) Scan(ctx context.Context, fn func(key string, value []byte) bool) error {
	if err := t.check(); err != nil {
		return err
	}

	// COLLATE "C" keeps ordering byte-wise regardless of the database locale
	query := fmt.Sprintf(`SELECT key, value FROM "%s" ORDER BY key COLLATE "C"`, t.name)
	rows, err := t.q.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("scan %s: %w", t.name, err)
	}

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s row: %w", t.name, err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", t.name, err)
	}

	for _, e := range entries {
		if !fn(e.key, e.value) {
			break
		}
	}
	return nil
}

func pgGet(ctx context.Context, q pgQuerier, table, key string, lock bool) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM "%s" WHERE key = $1`, table)
	if lock {
		query += " FOR UPDATE"
	}

	var value []byte
	err := q.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", table, key, err)
	}
	return value, true, nil
}

func pgPut(ctx context.Context, q pgQuerier, table, key string, value []byte) ([]byte, bool, error) {
	prev, replaced, err := pgGet(ctx, q, table, key, true)
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s" (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		table,
	)
	if _, err := q.Exec(ctx, query, key, value); err != nil {
		return nil, false, fmt.Errorf("put %s/%s: %w", table, key, err)
	}
	return prev, replaced, nil
}
