package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// 版本号 key 比数据 key 活得久，回填时据此判断期间是否有写入
const versionTTL = 24 * time.Hour

var errStaleFill = errors.New("cache: key changed during load")

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

func versionKey(key string) string { return key + "#v" }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	// 先读缓存；redis 故障时直接回源
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源
	v, err, _ := c.sf.Do(key, func() (any, error) {
		// 回源前记下版本号；读不到版本就不回填
		ver, verErr := c.RDB.Get(ctx, versionKey(key)).Result()
		if errors.Is(verErr, redis.Nil) {
			ver, verErr = "", nil
		}
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		if verErr == nil {
			_ = c.fill(ctx, key, ver, b, ttl)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// fill 仅当版本号未变时写入；WATCH 保证检查与写入之间没有 Invalidate 插队
func (c *Cache) fill(ctx context.Context, key, ver string, b []byte, ttl time.Duration) error {
	vk := versionKey(key)
	err := c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Result()
		if errors.Is(err, redis.Nil) {
			cur, err = "", nil
		}
		if err != nil {
			return err
		}
		if cur != ver {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, vk)
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleFill
	}
	return err
}

// Invalidate 删数据并递增版本号，进行中的回源不会再写回旧值
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, versionKey(k))
			p.Expire(ctx, versionKey(k), versionTTL)
			p.Del(ctx, k)
		}
		return nil
	})
	return err
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.RDB.Del(ctx, keys...).Err()
}
