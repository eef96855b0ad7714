package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCmdable is the subset of *redis.Client used by Redis.
type RedisCmdable interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis holds keys with SET NX and a TTL, so every process sharing the
// server sees the same limits.
type Redis struct {
	client   RedisCmdable
	prefix   string
	interval time.Duration
}

func NewRedis(client RedisCmdable, prefix string, interval time.Duration) *Redis {
	return &Redis{
		client:   client,
		prefix:   prefix,
		interval: interval,
	}
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

func (r *Redis) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), time.Now().Unix(), r.interval).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire rate limit: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to release rate limit: %w", err)
	}
	return nil
}
