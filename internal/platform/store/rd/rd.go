// Package rd provides a thin redis client for stream publishes
package rd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config configures redis connectivity
type Config struct {
	Addr     string
	DB       int
	Password string
}

// RD wraps a go-redis client
type RD struct {
	client *redis.Client
}

// Open dials redis and verifies connectivity
func Open(ctx context.Context, cfg Config) (*RD, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("rd: ping %s: %w", cfg.Addr, err)
	}
	return &RD{client: c}, nil
}

// XAdd appends an entry to a stream and returns its id
func (r *RD) XAdd(ctx context.Context, stream string, values map[string]any) (string, error) {
	return r.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
}

// XLen reports the stream length
func (r *RD) XLen(ctx context.Context, stream string) (int64, error) {
	return r.client.XLen(ctx, stream).Result()
}

// Ping verifies connectivity
func (r *RD) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

// Close closes the underlying client
func (r *RD) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
