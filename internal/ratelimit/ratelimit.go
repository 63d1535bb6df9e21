package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/metrics"
)

// RateLimiter gates admission per caller identity. A denial carries the
// retry-after hint the boundary response must include.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Close() error
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisRateLimiter connects to Redis and returns a sliding-window limiter.
func NewRedisRateLimiter(redisURL string, limit int, window time.Duration) (RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}, nil
}

// NewRedisRateLimiterWithClient wraps an existing client, used by tests.
func NewRedisRateLimiterWithClient(client *redis.Client, limit int, window time.Duration) RateLimiter {
	return &redisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow implements sliding window rate limiting using Redis. On denial it
// reports how long until the oldest entry falls out of the window.
func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()

	// Atomic check-and-add; returns {1, 0} when admitted, {0, wait_ns} when
	// denied with the nanoseconds until a slot frees up.
	script := `
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local limit = tonumber(ARGV[3])
		local window = tonumber(ARGV[4])

		-- Remove old entries
		redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

		-- Count current entries
		local current = redis.call('ZCARD', key)

		if current < limit then
			redis.call('ZADD', key, now, now)
			redis.call('PEXPIRE', key, math.ceil(window / 1000000))
			return {1, 0}
		end

		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local wait = oldest[2] + window - now
		if wait < 0 then
			wait = 0
		end
		return {0, wait}
	`

	result, err := r.client.Eval(ctx, script, []string{"ratelimit:" + key},
		now, windowStart, r.limit, r.window.Nanoseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit check returned %d values", len(result))
	}

	if result[0] == 1 {
		return true, 0, nil
	}

	metrics.RateLimitHits.WithLabelValues(key).Inc()
	retryAfter := time.Duration(result[1])
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter, nil
}

func (r *redisRateLimiter) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// memoryRateLimiter is a fixed-window fallback for deployments without
// Redis. Counts are process-local and lost on restart, which the admission
// contract tolerates.
type memoryRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	count       int
	windowStart time.Time
}

// NewMemoryRateLimiter returns a process-local fixed-window limiter.
func NewMemoryRateLimiter(limit int, window time.Duration) RateLimiter {
	return &memoryRateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (m *memoryRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.buckets[key]
	if !ok || now.Sub(b.windowStart) >= m.window {
		m.buckets[key] = &bucket{count: 1, windowStart: now}
		return true, 0, nil
	}

	if b.count < m.limit {
		b.count++
		return true, 0, nil
	}

	metrics.RateLimitHits.WithLabelValues(key).Inc()
	retryAfter := b.windowStart.Add(m.window).Sub(now)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter, nil
}

// sweep drops buckets whose window has elapsed, at most once per window, so
// one-off caller keys do not accumulate for the process lifetime. Callers
// must hold the mutex.
func (m *memoryRateLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	m.lastSweep = now
	for key, b := range m.buckets {
		if now.Sub(b.windowStart) >= m.window {
			delete(m.buckets, key)
		}
	}
}

func (m *memoryRateLimiter) Close() error {
	return nil
}

// NoOpRateLimiter always allows requests (for testing or disabled limiting).
type NoOpRateLimiter struct{}

func (n *NoOpRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return true, 0, nil
}

func (n *NoOpRateLimiter) Close() error {
	return nil
}
