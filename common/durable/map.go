package durable

import (
	"context"
	"fmt"
)

// Entry is one key/value pair returned by Map.Entries
type Entry[V any] struct {
	Key   string
	Value V
}

// Map is a typed view over a Table
type Map[V any] struct {
	table Table
	codec Codec[V]
}

// NewMap binds a table to a codec
func NewMap[V any](table Table, codec Codec[V]) *Map[V] {
	return &Map[V]{
		table: table,
		codec: codec,
	}
}

// Get returns the value stored under key
func (m *Map[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	raw, found, err := m.table.Get(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}

	v, err := m.codec.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("key %q: %w", key, err)
	}
	return v, true, nil
}

// Insert stores v under key, returning the value it replaced if any
func (m *Map[V]) Insert(ctx context.Context, key string, v V) (V, bool, error) {
	var zero V

	raw, err := m.codec.Encode(v)
	if err != nil {
		return zero, false, fmt.Errorf("key %q: %w", key, err)
	}

	prevRaw, replaced, err := m.table.Put(ctx, key, raw)
	if err != nil || !replaced {
		return zero, false, err
	}

	prev, err := m.codec.Decode(prevRaw)
	if err != nil {
		// the write went through; only the old value is unreadable
		return zero, true, nil
	}
	return prev, true, nil
}

// Remove deletes key, returning the removed value if any
func (m *Map[V]) Remove(ctx context.Context, key string) (V, bool, error) {
	var zero V

	raw, found, err := m.table.Delete(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}

	v, err := m.codec.Decode(raw)
	if err != nil {
		return zero, true, fmt.Errorf("key %q: %w", key, err)
	}
	return v, true, nil
}

// Len returns the number of entries
func (m *Map[V]) Len(ctx context.Context) (uint64, error) {
	return m.table.Count(ctx)
}

// Range calls fn for each entry in key order until fn returns false
func (m *Map[V]) Range(ctx context.Context, fn func(key string, v V) bool) error {
	var decodeErr error

	err := m.table.Scan(ctx, func(key string, raw []byte) bool {
		v, err := m.codec.Decode(raw)
		if err != nil {
			decodeErr = fmt.Errorf("key %q: %w", key, err)
			return false
		}
		return fn(key, v)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

// Entries returns every entry in key order
func (m *Map[V]) Entries(ctx context.Context) ([]Entry[V], error) {
	var entries []Entry[V]
	err := m.Range(ctx, func(key string, v V) bool {
		entries = append(entries, Entry[V]{Key: key, Value: v})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
