package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "blacklist:"

// TokenDenylist stores revoked token identifiers in Redis.  Each entry is a
// single key with a TTL, so entries disappear on their own once the token
// they revoke has expired.
type TokenDenylist struct {
	rdb redis.Cmdable
}

// NewTokenDenylist wraps an already connected Redis client.
func NewTokenDenylist(rdb redis.Cmdable) *TokenDenylist {
	return &TokenDenylist{rdb: rdb}
}

func denylistKey(jti string) string { return denylistPrefix + jti }

// Add records jti as revoked for ttl.  It reports whether this call created
// the entry; false means the jti was already revoked or ttl is not
// positive.  A non-positive ttl writes nothing because the token is already
// past its expiry.
func (d *TokenDenylist) Add(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	added, err := d.rdb.SetNX(ctx, denylistKey(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("denylist add %s: %w", jti, err)
	}
	return added, nil
}

// Contains reports whether jti is currently revoked.
func (d *TokenDenylist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denylistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("denylist lookup %s: %w", jti, err)
	}
	return n > 0, nil
}
