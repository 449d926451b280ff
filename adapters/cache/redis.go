package cache

import (
	"context"
	"fmt"
	"time"

	"qcgallery/internal"
	"qcgallery/ports"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "qcgallery:image:"

// Redis is a shared cache tier. Redis errors degrade to misses.
type Redis struct {
	client *redis.Client
	logger *internal.Logger
}

var _ ports.ImageCache = (*Redis)(nil)

// NewRedis connects to address and verifies it with PING
func NewRedis(ctx context.Context, address string, logger *internal.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, logger: logger.With("redis")}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("get %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		r.logger.Warn("set %s: %v", key, err)
	}
}

// Close closes the Redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
