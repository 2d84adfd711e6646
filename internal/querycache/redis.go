package querycache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
)

const scanBatch = 100

// RedisCache stores msgpack-encoded payloads in Redis.
type RedisCache struct {
	client *redis.Redis
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Redis) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, v interface{}) bool {
	val, err := c.client.GetCtx(ctx, key)
	if err != nil {
		logx.WithContext(ctx).Errorf("querycache: get %s: %v", key, err)
		return false
	}
	if val == "" {
		return false
	}
	if err := msgpack.Unmarshal([]byte(val), v); err != nil {
		logx.WithContext(ctx).Errorf("querycache: decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	payload, err := msgpack.Marshal(v)
	if err != nil {
		logx.WithContext(ctx).Errorf("querycache: encode %s: %v", key, err)
		return
	}
	if err := c.client.SetexCtx(ctx, key, string(payload), int(ttl/time.Second)); err != nil {
		logx.WithContext(ctx).Errorf("querycache: set %s: %v", key, err)
	}
}

func (c *RedisCache) InvalidatePattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.client.ScanCtx(ctx, cursor, pattern, scanBatch)
		if err != nil {
			logx.WithContext(ctx).Errorf("querycache: scan %s: %v", pattern, err)
			return
		}
		if len(keys) > 0 {
			if _, err := c.client.DelCtx(ctx, keys...); err != nil {
				logx.WithContext(ctx).Errorf("querycache: del %d keys: %v", len(keys), err)
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
