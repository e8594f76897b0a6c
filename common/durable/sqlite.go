package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// synchronous(FULL) makes every commit durable before the call returns.
const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_txlock=immediate"

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore persists tables in a single embedded SQLite file.
//
// The pool holds one connection, so writers are serialized and a caller
// inside Atomic must only use the Tx it was given.
type SQLiteStore struct {
	db     *sql.DB
	tables map[string]struct{}
	closed atomic.Bool
}

// OpenSQLite opens (or creates) the database at path and ensures every table exists
func OpenSQLite(path string, tables ...string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	names, err := validateTableNames(tables)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	for name := range names {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (key TEXT PRIMARY KEY NOT NULL, value BLOB)`, name)
		if _, err := sqlDB.Exec(ddl); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
	}

	return &SQLiteStore{
		db:     sqlDB,
		tables: names,
	}, nil
}

// Table returns the named table bound to the store's connection
func (s *SQLiteStore) Table(name string) Table {
	if _, ok := s.tables[name]; !ok {
		return missingTable{name: name}
	}
	return &sqliteTable{name: name, q: s.db, db: s.db, closed: &s.closed}
}

// Atomic runs fn inside one immediate transaction
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return runSQLiteTx(ctx, s.db, func(q sqlQuerier) error {
		return fn(&sqliteTx{q: q, tables: s.tables, closed: &s.closed})
	})
}

// Ping checks the database handle
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the SQLite handle
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type sqliteTx struct {
	q      sqlQuerier
	tables map[string]struct{}
	closed *atomic.Bool
}

func (t *sqliteTx) Table(name string) Table {
	if _, ok := t.tables[name]; !ok {
		return missingTable{name: name}
	}
	return &sqliteTable{name: name, q: t.q, closed: t.closed}
}

type sqliteTable struct {
	name string
	q    sqlQuerier

	// db is set when the table is used outside Atomic; multi-statement
	// operations then open their own transaction.
	db     *sql.DB
	closed *atomic.Bool
}

func (t *sqliteTable) check() error {
	if t.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (t *sqliteTable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}
	return sqliteGet(ctx, t.q, t.name, key)
}

func (t *sqliteTable) Put(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}
	if t.db == nil {
		return sqlitePut(ctx, t.q, t.name, key, value)
	}

	var (
		prev     []byte
		replaced bool
	)
	err := runSQLiteTx(ctx, t.db, func(q sqlQuerier) error {
		var err error
		prev, replaced, err = sqlitePut(ctx, q, t.name, key, value)
		return err
	})
	return prev, replaced, err
}

func (t *sqliteTable) Delete(ctx context.Context, key string) ([]byte, bool, error) {
	if err := t.check(); err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(`DELETE FROM "%s" WHERE key = ? RETURNING value`, t.name)

	var value []byte
	err := t.q.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("delete %s/%s: %w", t.name, key, err)
	}
	return value, true, nil
}

func (t *sqliteTable) Count(ctx context.Context) (uint64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, t.name)
	if err := t.q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return uint64(n), nil
}

func (t *sqliteTable) Scan(ctx context.Context, fn func(key string, value []byte) bool) error {
	if err := t.check(); err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT key, value FROM "%s" ORDER BY key`, t.name)
	rows, err := t.q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("scan %s: %w", t.name, err)
	}

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan %s row: %w", t.name, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate %s: %w", t.name, err)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close %s rows: %w", t.name, err)
	}

	for _, e := range entries {
		if !fn(e.key, e.value) {
			break
		}
	}
	return nil
}

func sqliteGet(ctx context.Context, q sqlQuerier, table, key string) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM "%s" WHERE key = ?`, table)

	var value []byte
	err := q.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", table, key, err)
	}
	return value, true, nil
}

func sqlitePut(ctx context.Context, q sqlQuerier, table, key string, value []byte) ([]byte, bool, error) {
	prev, replaced, err := sqliteGet(ctx, q, table, key)
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s" (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		table,
	)
	if _, err := q.ExecContext(ctx, query, key, value); err != nil {
		return nil, false, fmt.Errorf("put %s/%s: %w", table, key, err)
	}
	return prev, replaced, nil
}

func runSQLiteTx(ctx context.Context, db *sql.DB, fn func(q sqlQuerier) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
