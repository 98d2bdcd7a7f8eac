package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist 已注销 token 的 jti，过期时间与 token 本身一致
type Denylist struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewDenylist(c *Cache, prefix string) *Denylist {
	if prefix == "" {
		prefix = "auth:revoked:"
	}
	return &Denylist{rdb: c.RDB, prefix: prefix, now: time.Now}
}

func (d *Denylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, d.prefix+jti, 1, ttl).Err()
}

func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := d.rdb.Exists(ctx, d.prefix+jti).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return n > 0, nil
}
