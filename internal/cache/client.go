// Package cache implements the two caching tiers in front of the
// forecast store: a shared Redis/ElastiCache layer for pre-aggregated
// query results, and a process-local full-dataset snapshot with a
// derived date index.
//
// The distributed layer is an optimization, never a correctness
// dependency: reads degrade to misses and writes are fire-and-forget. A
// circuit breaker latches the client unavailable after consecutive
// failures so a dead cache endpoint cannot add per-request latency.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// Key namespaces shared with the ingestion pipeline and the API layer.
const (
	KeyAllSpots     = "awaves:surf:all_spots"
	keySpotsPrefix  = "awaves:surf:spots:"
	keyLatestPrefix = "awaves:surf:latest:"
	keySavedPrefix  = "awaves:saved:"
)

// Client wraps a Redis connection with the platform's degradation
// policy. The zero-value-like disabled client (empty URL) satisfies all
// methods as permanent misses/no-ops.
type Client struct {
	logger *slog.Logger
	url    string

	mu  sync.Mutex
	rdb *redis.Client

	breaker *gobreaker.CircuitBreaker[any]
}

// NewClient creates a cache client for the given Redis URL. An empty
// URL yields a disabled client; connection establishment is lazy, so a
// temporarily unreachable endpoint only costs the breaker's failure
// budget.
func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "distributed-cache",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{logger: logger, url: url, breaker: cb}
}

// client returns the shared Redis handle, creating it on first use. The
// handle is created once and shared read-only thereafter; go-redis
// reconnects internally on failure.
func (c *Client) client() *redis.Client {
	if c.url == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rdb != nil {
		return c.rdb
	}

	url := c.url
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		url = "redis://" + url
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		c.logger.Warn("invalid cache URL, distributed cache disabled", "error", err)
		c.url = ""
		return nil
	}
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	c.rdb = redis.NewClient(opt)
	return c.rdb
}

// Enabled reports whether a cache endpoint is configured at all.
func (c *Client) Enabled() bool { return c.url != "" }

// get returns (value, true) on a hit. Any failure, including an open
// breaker, is a miss.
func (c *Client) get(ctx context.Context, key string) (string, bool) {
	rdb := c.client()
	if rdb == nil {
		return "", false
	}

	val, err := c.breaker.Execute(func() (any, error) {
		return rdb.Get(ctx, key).Result()
	})
	if err != nil {
		if err != redis.Nil && err != gobreaker.ErrOpenState {
			c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// set stores a value with a TTL. Failures are logged and swallowed.
func (c *Client) set(ctx context.Context, key, value string, ttl time.Duration) {
	rdb := c.client()
	if rdb == nil {
		return
	}

	if _, err := c.breaker.Execute(func() (any, error) {
		return nil, rdb.Set(ctx, key, value, ttl).Err()
	}); err != nil && err != gobreaker.ErrOpenState {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

// del removes keys in a single pipelined round trip. Failures are
// logged and swallowed.
func (c *Client) del(ctx context.Context, keys ...string) {
	rdb := c.client()
	if rdb == nil || len(keys) == 0 {
		return
	}

	if _, err := c.breaker.Execute(func() (any, error) {
		pipe := rdb.Pipeline()
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	}); err != nil && err != gobreaker.ErrOpenState {
		c.logger.WarnContext(ctx, "cache delete failed", "keys", len(keys), "error", err)
	}
}

// setBatch stores many key/value pairs with a shared TTL in one
// pipeline. Returns the number of entries submitted (0 when the cache is
// unavailable).
func (c *Client) setBatch(ctx context.Context, entries map[string]string, ttl time.Duration) int {
	rdb := c.client()
	if rdb == nil || len(entries) == 0 {
		return 0
	}

	if _, err := c.breaker.Execute(func() (any, error) {
		pipe := rdb.Pipeline()
		for key, value := range entries {
			pipe.Set(ctx, key, value, ttl)
		}
		_, err := pipe.Exec(ctx)
		return nil, err
	}); err != nil {
		if err != gobreaker.ErrOpenState {
			c.logger.WarnContext(ctx, "cache batch write failed", "keys", len(entries), "error", err)
		}
		return 0
	}
	return len(entries)
}
