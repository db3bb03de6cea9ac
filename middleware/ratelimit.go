// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether one more request under the given key fits inside
// the current fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit caps requests per client IP for one route. On limiter failure
// the request is allowed through: throttling is best-effort and must not
// take the API down with it.
func RateLimit(l Limiter, route string, limit int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := fmt.Sprintf("ratelimit:%s:%s", route, GetClientIP(r))
		ok, err := l.Allow(r.Context(), key, limit, window)
		if err != nil {
			slog.Warn("rate limiter unavailable", "route", route, "error", err)
			ok = true
		}
		if !ok {
			ErrorResponse(w, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}
		next(w, r)
	}
}

// RedisLimiter counts requests in Redis so the window is shared across
// instances.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(ctx context.Context, url string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return &RedisLimiter{client: c}, nil
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	// The TTL is armed once per window (NX applies the expiry only when the
	// key has none). Refreshing it on every hit would keep the window open
	// for as long as a client keeps retrying, locking them out forever.
	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("error executing redis pipeline: %w", err)
	}

	n, err := incr.Result()
	if err != nil {
		return false, fmt.Errorf("error getting incr result: %w", err)
	}
	return n <= int64(limit), nil
}

func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

// MemoryLimiter is the single-instance fallback used when no Redis URL is
// configured, and what the tests run against.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]*memoryWindow)}
}

func (ml *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	win, ok := ml.windows[key]
	if !ok || now.After(win.resetAt) {
		ml.windows[key] = &memoryWindow{count: 1, resetAt: now.Add(window)}
		return true, nil
	}
	win.count++
	return win.count <= limit, nil
}
