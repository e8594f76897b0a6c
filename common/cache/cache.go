package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/lyzr/registry/common/logger"
)

// Cache interface for key-value storage
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	defaultMaxEntries = 1024
	defaultMaxBytes   = 256 << 20
)

// MemoryConfig bounds a MemoryCache. Zero fields fall back to defaults.
type MemoryConfig struct {
	// MaxEntries is the most entries kept before the least recently used is dropped
	MaxEntries int
	// MaxBytes caps the summed size of all values; larger values are not cached
	MaxBytes int64
}

func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.MaxEntries <= 0 {
		c.MaxEntries = defaultMaxEntries
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
	return c
}

// MemoryCache is an in-process LRU cache with per-entry TTL and a byte budget
type MemoryCache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *cacheEntry]
	bytes    int64
	maxBytes int64
	closed   bool

	log  *logger.Logger
	stop chan struct{}
	once sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(cfg MemoryConfig, log *logger.Logger) (*MemoryCache, error) {
	cfg = cfg.withDefaults()

	c := &MemoryCache{
		maxBytes: cfg.MaxBytes,
		log:      log,
		stop:     make(chan struct{}),
	}

	// the callback runs inside lru calls, which always happen under c.mu
	lru, err := simplelru.NewLRU[string, *cacheEntry](cfg.MaxEntries, func(_ string, e *cacheEntry) {
		c.bytes -= int64(len(e.value))
	})
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = lru

	go c.cleanup(time.Minute)

	return c, nil
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false, nil
	}

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		c.lru.Remove(key)
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value in cache. A zero ttl never expires. Values larger than
// the byte budget are skipped; otherwise least recently used entries are
// dropped until the value fits.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.lru.Remove(key)

	size := int64(len(value))
	if size > c.maxBytes {
		c.log.Debug("value exceeds cache budget, not cached", "key", key, "size", size)
		return nil
	}

	for c.bytes+size > c.maxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}

	entry := &cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.lru.Add(key, entry)
	c.bytes += size

	return nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	return nil
}

// Close drops all entries and stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	c.once.Do(func() {
		close(c.stop)

		c.mu.Lock()
		c.lru.Purge()
		c.closed = true
		c.mu.Unlock()

		c.log.Info("memory cache closed")
	})
	return nil
}

// cleanup removes expired entries periodically
func (c *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *MemoryCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && entry.expired(now) {
			c.lru.Remove(key)
		}
	}
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return map[string]interface{}{
		"entries":   c.lru.Len(),
		"bytes":     c.bytes,
		"max_bytes": c.maxBytes,
		"type":      "memory",
	}
}
