package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter keyed per client. It guards the
// public validate endpoint against brute-force code guessing.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow increments the window counter for key and reports whether the caller
// is still under limit, along with how many attempts remain in the window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, 0, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, 0, err
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if count > int64(limit) {
		return false, 0, nil
	}

	return true, remaining, nil
}

func ValidateAttemptKey(ip string) string {
	return fmt.Sprintf("rate_limit:validate:%s", ip)
}
