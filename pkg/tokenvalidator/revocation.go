package tokenvalidator

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationChecker answers whether a jti has been revoked. Implementations
// must treat connectivity failures as a distinct outcome from "not
// revoked" so the caller can fail closed.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// RedisRevocationChecker stores revoked jti values as short-lived Redis
// keys, grounded on the reference services' Redis-backed rate limiter
// (INCR/EXPIRE pipeline) for the connection-handling idiom.
type RedisRevocationChecker struct {
	client *redis.Client
}

// NewRedisRevocationChecker wraps an existing Redis client.
func NewRedisRevocationChecker(client *redis.Client) *RedisRevocationChecker {
	return &RedisRevocationChecker{client: client}
}

func revocationKey(jti string) string {
	return "eaf:revoked:" + jti
}

// IsRevoked returns (true, nil) if jti is present in the revocation set,
// (false, nil) if confirmed absent, or (false, err) if the set could not
// be consulted — the caller must treat the error case as fail-closed.
func (c *RedisRevocationChecker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("tokenvalidator: checking revocation set: %w", err)
	}
	return n > 0, nil
}

// Revoke marks jti as revoked for ttl (normally the remaining lifetime of
// the token being revoked, so the set does not grow unbounded).
func (c *RedisRevocationChecker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := c.client.Set(ctx, revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("tokenvalidator: writing revocation set: %w", err)
	}
	return nil
}
