package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const defaultStaleSetKey = "gift-ledger:stale-keys"

// RedisRegistry shares stale marks between processes through a Redis set.
// Calls go through a circuit breaker so an unreachable Redis fails fast.
type RedisRegistry struct {
	client  redis.UniversalClient
	setKey  string
	breaker *gobreaker.CircuitBreaker
}

type RedisOption func(*RedisRegistry)

// WithSetKey overrides the Redis key holding the stale set.
func WithSetKey(key string) RedisOption {
	return func(r *RedisRegistry) { r.setKey = key }
}

func NewRedisRegistry(client redis.UniversalClient, logger *slog.Logger, opts ...RedisOption) *RedisRegistry {
	r := &RedisRegistry{
		client: client,
		setKey: defaultStaleSetKey,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stale-registry",
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

func (r *RedisRegistry) MarkStale(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.client.SAdd(ctx, r.setKey, members...).Err()
	})
	if err != nil {
		return fmt.Errorf("mark stale: %w", err)
	}
	return nil
}

// Consume relies on SREM returning the number of removed members, which makes
// check-and-clear a single atomic step across processes.
func (r *RedisRegistry) Consume(ctx context.Context, key string) (bool, error) {
	res, err := r.breaker.Execute(func() (any, error) {
		return r.client.SRem(ctx, r.setKey, key).Result()
	})
	if err != nil {
		return false, fmt.Errorf("consume stale mark %q: %w", key, err)
	}
	return res.(int64) > 0, nil
}
