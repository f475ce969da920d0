// Package db provides the Redis connection used for shared counters.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"time"

	"tanktally_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis instance named by the configured URL and
// verifies it answers a PING.
func NewClient(ctx context.Context, cfg config.RateLimitConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.ConnMaxIdleTime = 30 * time.Minute
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// HealthAdapter exposes a Redis client as a readiness check.
type HealthAdapter struct {
	client *redis.Client
}

// NewHealthAdapter wraps client.
func NewHealthAdapter(client *redis.Client) *HealthAdapter {
	return &HealthAdapter{client: client}
}

// Ping reports whether Redis is reachable.
func (h *HealthAdapter) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}
