package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDedup remembers webhook transmission ids so replayed deliveries can be
// acknowledged without re-applying their updates.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDedup{client: client, ttl: ttl}
}

// MarkTransmission returns false when the transmission id was already seen
// within the TTL window.
func (r *RedisDedup) MarkTransmission(ctx context.Context, transmissionID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, transmissionKey(transmissionID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark transmission: %w", err)
	}
	return ok, nil
}

// UnmarkTransmission releases the id so a retried delivery is processed again.
func (r *RedisDedup) UnmarkTransmission(ctx context.Context, transmissionID string) error {
	if err := r.client.Del(ctx, transmissionKey(transmissionID)).Err(); err != nil {
		return fmt.Errorf("unmark transmission: %w", err)
	}
	return nil
}

func transmissionKey(transmissionID string) string {
	return "webhook:transmission:" + transmissionID
}
