package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/pkg/markethours"
)

// Entry is a cached payload with the time it was fetched upstream.
type Entry struct {
	Payload     []byte `msgpack:"p"`
	FetchedAtMs int64  `msgpack:"t"`
}

// FetchedAt returns the fetch time.
func (e Entry) FetchedAt() time.Time { return time.UnixMilli(e.FetchedAtMs) }

func encodeEntry(e Entry) ([]byte, error) { return msgpack.Marshal(&e) }

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	err := msgpack.Unmarshal(raw, &e)
	return e, err
}

// Backend stores entries. Get reports ok=false on a miss. retention is how
// long the backend may keep the entry; freshness is decided by the Cache.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry, retention time.Duration) error
}

// Cache applies the market-aware TTL policy on top of a Backend.
type Cache struct {
	backend Backend
	policy  TTLPolicy
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Cache over backend.
func New(backend Backend, policy TTLPolicy, opts ...Option) *Cache {
	c := &Cache{backend: backend, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the TTL policy in use.
func (c *Cache) Policy() TTLPolicy { return c.policy }

// GetOrFetch returns the cached value for (kind, code) when it is still fresh
// for market, otherwise calls fetch and caches its result. Fetch errors are
// returned and never cached. Backend failures are logged and treated as a
// miss or a skipped write.
func GetOrFetch[T any](ctx context.Context, c *Cache, kind Kind, m markethours.Market, code string, fetch func(context.Context) (T, error)) (T, error) {
	key := Key(kind, code)
	now := c.now()

	if e, ok, err := c.backend.Get(ctx, key); err != nil {
		logx.WithContext(ctx).Errorf("cache: get %s: %v", key, err)
	} else if ok && c.policy.Fresh(kind, m, e.FetchedAt(), now) {
		var v T
		err := msgpack.Unmarshal(e.Payload, &v)
		if err == nil {
			return v, nil
		}
		logx.WithContext(ctx).Errorf("cache: decode %s: %v", key, err)
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	payload, err := msgpack.Marshal(v)
	if err != nil {
		logx.WithContext(ctx).Errorf("cache: encode %s: %v", key, err)
		return v, nil
	}
	entry := Entry{Payload: payload, FetchedAtMs: c.now().UnixMilli()}
	if err := c.backend.Set(ctx, key, entry, c.policy.Retention()); err != nil {
		logx.WithContext(ctx).Errorf("cache: set %s: %v", key, err)
	}
	return v, nil
}
