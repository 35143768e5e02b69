package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	availabilityKeyPrefix = "availability:"
	idempotencyKeyTTL     = 24 * time.Hour
)

// RedisAdapter implements port.CacheRepository. Idempotency claims use SETNX
// with a TTL matching the cancellation window; availability entries are a
// write-through copy of the store's counters for cheap reads.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) SetAvailability(ctx context.Context, itemID string, available int) error {
	key := availabilityKeyPrefix + itemID
	return r.client.Set(ctx, key, available, 0).Err()
}

func (r *RedisAdapter) GetAvailability(ctx context.Context, itemID string) (int, bool, error) {
	key := availabilityKeyPrefix + itemID
	available, err := r.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return available, true, nil
}
