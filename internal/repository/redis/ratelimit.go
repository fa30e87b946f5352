package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter enforces a per-caller request budget over fixed
// one-minute windows. Counters live in Redis so every API instance
// draws from the same budget.
type RateLimiter struct {
	client *Client
	limit  int64
}

// NewRateLimiter creates a limiter allowing requestsPerMinute plus a
// burst allowance within each window
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  int64(requestsPerMinute + burst),
	}
}

// Allow counts one request against the caller's current window. It
// reports whether the request fits, how much budget remains, and when
// the window resets.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	counterKey := rateLimitPrefix + key
	windowEnd := time.Now().Truncate(time.Minute).Add(time.Minute)

	// INCR and the conditional expiry travel in one pipeline round
	// trip. ExpireNX only arms the TTL on a fresh counter, so the
	// window is anchored to the first request in it.
	pipe := r.client.rdb.TxPipeline()
	count := pipe.Incr(ctx, counterKey)
	pipe.ExpireNX(ctx, counterKey, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to count request: %w", err)
	}

	used := count.Val()
	remaining := r.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return used <= r.limit, int(remaining), windowEnd, nil
}
