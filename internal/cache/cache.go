// Package cache is a read-through cache for read-mostly views of the ledger.
//
// Each lookup picks its revalidation mode. With a positive ttl an entry is
// served until it is older than ttl. With ttl <= 0 an entry is served until its
// key is marked stale in the StalenessRegistry; the mark is consumed by the
// refetch it causes. Entries never expire proactively.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	timestamp time.Time
}

// Factory produces a fresh value for a key on a miss.
type Factory func(ctx context.Context) (any, error)

type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	registry StalenessRegistry
	logger   *slog.Logger
	now      func() time.Time

	dedup bool
	group singleflight.Group
}

type Option func(*Cache)

// WithDeduplication collapses concurrent misses on the same key into one
// factory call. Without it concurrent misses each call the factory.
func WithDeduplication() Option {
	return func(c *Cache) { c.dedup = true }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(registry StalenessRegistry, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]entry),
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrSet returns the cached value for key, invoking factory when the entry
// is missing, older than ttl (ttl > 0) or marked stale (ttl <= 0). Factory
// errors are returned and nothing is cached.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, factory Factory) (any, error) {
	c.mu.RLock()
	existing, ok := c.entries[key]
	c.mu.RUnlock()

	now := c.now()

	if ttl > 0 {
		if ok && now.Sub(existing.timestamp) < ttl {
			lookups.WithLabelValues(modeTTL, resultHit).Inc()
			return existing.value, nil
		}
		lookups.WithLabelValues(modeTTL, resultMiss).Inc()
		return c.fetch(ctx, key, now, factory)
	}

	// A pending mark is consumed on a cold miss too, so the fetch below
	// satisfies it and the next read stays on the fast path.
	consumed, err := c.registry.Consume(ctx, key)
	stale := consumed
	if err != nil {
		c.logger.Warn("staleness check failed, refetching", "key", key, "error", err)
		stale = true
	}

	switch {
	case ok && !stale:
		lookups.WithLabelValues(modePerpetual, resultHit).Inc()
		return existing.value, nil
	case ok:
		c.logger.Debug("cache key stale, refetching", "key", key)
		lookups.WithLabelValues(modePerpetual, resultStale).Inc()
	default:
		lookups.WithLabelValues(modePerpetual, resultMiss).Inc()
	}

	v, err := c.fetch(ctx, key, now, factory)
	if err != nil && stale {
		c.restoreStale(ctx, key, consumed)
	}
	return v, err
}

// restoreStale undoes a consumed mark after a failed refetch. The old entry is
// dropped so no later read can serve it, and the mark is put back for other
// readers of a shared registry.
func (c *Cache) restoreStale(ctx context.Context, key string, consumed bool) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if !consumed {
		return
	}
	if err := c.registry.MarkStale(ctx, key); err != nil {
		c.logger.Warn("failed to restore stale mark", "key", key, "error", err)
	}
}

func (c *Cache) fetch(ctx context.Context, key string, now time.Time, factory Factory) (any, error) {
	load := func() (any, error) {
		v, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry{value: v, timestamp: now}
		c.mu.Unlock()
		return v, nil
	}

	if !c.dedup {
		return load()
	}
	v, err, _ := c.group.Do(key, load)
	return v, err
}

// MarkStale flags keys for refetch on their next perpetual-mode read.
func (c *Cache) MarkStale(ctx context.Context, keys ...string) error {
	return c.registry.MarkStale(ctx, keys...)
}

// Fetch is GetOrSet with a typed factory.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, factory func(context.Context) (T, error)) (T, error) {
	v, err := c.GetOrSet(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return factory(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache key %q holds %T", key, v)
	}
	return out, nil
}
