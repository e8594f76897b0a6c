// Package durable provides a persistent, ordered string-keyed map on top of
// an embedded SQLite file or a Postgres database.
//
// Each named table is an independent namespace backed by its own SQL table,
// so writes to one table can never touch rows of another. Every mutating
// call is committed before it returns. Iteration is in ascending byte-wise
// key order and is therefore stable across reads and restarts.
package durable

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrUnknownTable is returned when a table was not declared at open time
	ErrUnknownTable = errors.New("unknown table")

	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store closed")
)

// Table is one raw namespace of a store: string keys to encoded values
type Table interface {
	// Get returns the stored bytes for key, or found=false
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key and returns the previous value if there was one
	Put(ctx context.Context, key string, value []byte) (prev []byte, replaced bool, err error)

	// Delete removes key and returns the removed value if there was one
	Delete(ctx context.Context, key string) (prev []byte, found bool, err error)

	// Count returns the number of keys in the table
	Count(ctx context.Context) (uint64, error)

	// Scan calls fn for every entry in ascending key order.
	// Rows are fully read before fn is called, so fn may use the same Tx.
	Scan(ctx context.Context, fn func(key string, value []byte) bool) error
}

// Tx exposes the tables of a store inside (or outside) a transaction
type Tx interface {
	Table(name string) Table
}

// Store is a durable collection of tables
type Store interface {
	Tx

	// Atomic runs fn in a single transaction. Any error returned by fn
	// rolls back every write made through tx.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

func validateTableNames(names []string) (map[string]struct{}, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if !tableNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
		if _, dup := set[name]; dup {
			return nil, fmt.Errorf("duplicate table name %q", name)
		}
		set[name] = struct{}{}
	}
	return set, nil
}

// missingTable satisfies Table for names that were never declared
type missingTable struct {
	name string
}

func (m missingTable) err() error {
	return fmt.Errorf("%w: %s", ErrUnknownTable, m.name)
}

func (m missingTable) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, m.err()
}

func (m missingTable) Put(context.Context, string, []byte) ([]byte, bool, error) {
	return nil, false, m.err()
}

func (m missingTable) Delete(context.Context, string) ([]byte, bool, error) {
	return nil, false, m.err()
}

func (m missingTable) Count(context.Context) (uint64, error) {
	return 0, m.err()
}

func (m missingTable) Scan(context.Context, func(string, []byte) bool) error {
	return m.err()
}

type entry struct {
	key   string
	value []byte
}
