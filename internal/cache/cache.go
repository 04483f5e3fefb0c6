// Package cache provides the bounded in-memory caches backing the token,
// artwork and authorization-state stores. Entries expire after a fixed TTL
// and eviction keeps each cache within its configured capacity.
package cache

import (
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is a TTL-and-capacity bounded cache built on otter.
// The generic type T is the value type being cached.
type Memory[T any] struct {
	cache   *otter.Cache[string, T]
	ttl     time.Duration
	counter *stats.Counter
}

// NewMemory creates a cache holding at most maxSize entries, each expiring
// ttl after creation.
func NewMemory[T any](ttl time.Duration, maxSize int) *Memory[T] {
	counter := stats.NewCounter()
	cache := otter.Must(&otter.Options[string, T]{
		MaximumSize:      maxSize,
		StatsRecorder:    counter,
		ExpiryCalculator: otter.ExpiryCreating[string, T](ttl),
	})

	return &Memory[T]{
		cache:   cache,
		ttl:     ttl,
		counter: counter,
	}
}

// Get retrieves a value, reporting whether a live entry was present.
func (m *Memory[T]) Get(key string) (T, bool) {
	entry, ok := m.cache.GetEntry(key)
	if !ok {
		var zero T
		return zero, false
	}

	return entry.Value, true
}

// Set stores a value, replacing any existing entry for the key.
func (m *Memory[T]) Set(key string, value T) {
	m.cache.Set(key, value)
}

// Invalidate removes an entry from the cache.
func (m *Memory[T]) Invalidate(key string) {
	m.cache.Invalidate(key)
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (m *Memory[T]) Stats() stats.Stats {
	return m.counter.Snapshot()
}
