// ABOUTME: Redis credential medium for processes sharing a session
// ABOUTME: Uses key expiry to enforce token lifetimes

package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMedium stores tokens as Redis strings under a key prefix.
type RedisMedium struct {
	client *redis.Client
	prefix string
}

// NewRedisMedium wraps an existing client.
func NewRedisMedium(client *redis.Client, prefix string) *RedisMedium {
	return &RedisMedium{client: client, prefix: prefix}
}

// DialRedis parses redisURL, connects and verifies the connection.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisMedium) Get(ctx context.Context, name string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s from redis: %w", name, err)
	}
	return val, true, nil
}

func (r *RedisMedium) Set(ctx context.Context, name, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+name, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", name, err)
	}
	return nil
}

func (r *RedisMedium) Delete(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, r.prefix+name).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", name, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisMedium) Close() error {
	return r.client.Close()
}
