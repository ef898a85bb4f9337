package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore is a CounterStore backed by Redis, for deployments with
// more than one API node.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps an existing Redis client.
func NewRedisCounterStore(client *redis.Client) (*RedisCounterStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisCounterStore{client: client}, nil
}

// Incr increments the counter, setting the expiry on first use.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Decr decrements the counter.
func (s *RedisCounterStore) Decr(ctx context.Context, key string) error {
	if err := s.client.Decr(ctx, key).Err(); err != nil {
		return fmt.Errorf("decr %s: %w", key, err)
	}
	return nil
}
