package cache

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zeromicro/go-zero/core/stores/redis"
)

// RedisBackend stores msgpack-encoded entries in redis with key expiry set to
// the retention.
type RedisBackend struct {
	rds *redis.Redis
}

func NewRedisBackend(rds *redis.Redis) *RedisBackend {
	return &RedisBackend{rds: rds}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := b.rds.GetCtx(ctx, key)
	if err != nil {
		return Entry{}, false, err
	}
	if raw == "" {
		return Entry{}, false, nil
	}
	e, err := decodeEntry([]byte(raw))
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode entry: %w", err)
	}
	return e, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, e Entry, retention time.Duration) error {
	raw, err := encodeEntry(e)
	if err != nil {
		return err
	}
	secs := int(math.Ceil(retention.Seconds()))
	if secs <= 0 {
		return b.rds.SetCtx(ctx, key, string(raw))
	}
	return b.rds.SetexCtx(ctx, key, string(raw), secs)
}
