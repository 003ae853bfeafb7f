package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-authgate/credgate/internal/core"

	"golang.org/x/sync/singleflight"
)

type cacheItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Compile-time interface check.
var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache implements Cache interface with in-memory storage.
// Uses lazy expiration (checks expiry on Get).
// Concurrent GetWithFetch misses for the same key share one fetch.
//
// Delete and Flush advance a generation counter. A fetch that started in an
// earlier generation neither stores its result nor is joined by later callers.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[T]
	gen   uint64
	group singleflight.Group
}

// NewMemoryCache creates a new memory cache instance.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheItem[T]),
	}
}

// Get retrieves a value from cache.
func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}

	return item.value, nil
}

// Set stores a value in cache with TTL.
func (m *MemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = cacheItem[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a key from cache.
func (m *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	m.gen++
	return nil
}

// Flush removes all keys.
func (m *MemoryCache[T]) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]cacheItem[T])
	m.gen++
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close cleans up resources.
func (m *MemoryCache[T]) Close() error {
	return m.Flush(context.Background())
}

// GetWithFetch retrieves a value using the cache-aside pattern.
// On cache miss, fetchFunc is called once per key even under concurrent
// load, and a successful result is stored in cache. Errors are not cached,
// and neither are results of a fetch overtaken by Delete or Flush.
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	m.mu.RLock()
	item, exists := m.items[key]
	gen := m.gen
	m.mu.RUnlock()
	if exists && time.Now().Before(item.expiresAt) {
		return item.value, nil
	}

	// Scoping the flight to the generation keeps callers arriving after an
	// invalidation off a fetch that may have read stale data.
	flight := strconv.FormatUint(gen, 10) + ":" + key
	v, err, _ := m.group.Do(flight, func() (any, error) {
		value, err := fetchFunc(ctx, key)
		if err != nil {
			return nil, err
		}
		m.setIfGeneration(key, value, ttl, gen)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (m *MemoryCache[T]) setIfGeneration(key string, value T, ttl time.Duration, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.items[key] = cacheItem[T]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}
