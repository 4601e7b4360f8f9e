package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter backed by Redis.
// Key format: ratelimit:<scope>:<identity>
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a RateLimiter wrapping the given Redis client.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one request for identity in scope and reports whether it is
// within max for the current window. When the request is rejected, retryAfter
// is the time left until the window resets.
//
// INCR, EXPIRE NX and TTL run in one MULTI so a counter can never be left
// without an expiry, and later hits in the window do not extend it.
func (l *RateLimiter) Allow(ctx context.Context, scope, identity string, max int, window time.Duration) (bool, time.Duration, error) {
	key := l.key(scope, identity)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", scope, err)
	}

	if incr.Val() <= int64(max) {
		return true, 0, nil
	}
	retryAfter := ttl.Val()
	if retryAfter <= 0 {
		retryAfter = window
	}
	return false, retryAfter, nil
}

func (l *RateLimiter) key(scope, identity string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, identity)
}
