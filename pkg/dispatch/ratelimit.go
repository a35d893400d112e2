package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces the per-tenant event rate limit via Redis INCR +
// EXPIRE, the same counter idiom used for login-attempt limiting
// elsewhere in this codebase. Unlike login rate limiting, an unreachable
// counter store here degrades gracefully (Allow returns true) since this
// is a DoS control, not a correctness control.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter builds a limiter enforcing limit events per window for
// each tenant.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func rateLimitKey(tenantID string) string {
	return fmt.Sprintf("tenant:events:rate:%s", tenantID)
}

// Allow increments the tenant's counter for the current window and
// reports whether it is still under limit. On a Redis error it reports
// allowed=true, degraded=true so the caller can emit rate_limit_error and
// proceed rather than fail closed.
func (rl *RateLimiter) Allow(ctx context.Context, tenantID string) (allowed bool, degraded bool, err error) {
	key := rateLimitKey(tenantID)

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		return true, true, execErr
	}

	return incr.Val() <= int64(rl.limit), false, nil
}
