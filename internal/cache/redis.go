package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements PageCache on a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects a page cache to the given Redis address. A
// non-positive ttl falls back to DefaultPageTTL.
func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Ping verifies connectivity; called once at startup.
func (c *Redis) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Redis) Close() error { return c.client.Close() }

func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return payload, nil
}

func (c *Redis) Set(ctx context.Context, key string, payload []byte) error {
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Version reads the scope's version counter. Any error, including an
// absent counter, reads as version 0: worst case is a cache miss.
func (c *Redis) Version(ctx context.Context, scope string) int64 {
	v, err := c.client.Get(ctx, versionKey(scope)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Bump advances the scope's version counter so stale pages stop matching.
func (c *Redis) Bump(ctx context.Context, scope string) error {
	if err := c.client.Incr(ctx, versionKey(scope)).Err(); err != nil {
		return fmt.Errorf("cache bump %q: %w", scope, err)
	}
	return nil
}

func versionKey(scope string) string {
	return "pricing:ver:" + scope
}

var _ PageCache = (*Redis)(nil)
