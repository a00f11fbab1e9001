package config

// This file defines the Redis client constructor.  Redis holds the token
// denylist and the rate limiter buckets.  Unlike the rate limiter, the
// denylist cannot degrade gracefully, so a failed ping is returned to the
// caller and the process refuses to start.

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from a redis:// or rediss:// URL and pings
// the server with a short timeout.  An empty url falls back to
// DefaultRedisURL.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		url = DefaultRedisURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}
