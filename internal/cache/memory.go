package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/collection"
)

const memoryCacheName = "assistant-data"

// MemoryBackend keeps entries in a bounded LRU collection.Cache.
type MemoryBackend struct {
	store *collection.Cache
}

// NewMemoryBackend creates a backend holding at most limit entries, each for
// at most retention.
func NewMemoryBackend(limit int, retention time.Duration) (*MemoryBackend, error) {
	opts := []collection.CacheOption{collection.WithName(memoryCacheName)}
	if limit > 0 {
		opts = append(opts, collection.WithLimit(limit))
	}
	store, err := collection.NewCache(retention, opts...)
	if err != nil {
		return nil, fmt.Errorf("cache: memory backend: %w", err)
	}
	return &MemoryBackend{store: store}, nil
}

func (b *MemoryBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	v, ok := b.store.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	e, ok := v.(Entry)
	if !ok {
		return Entry{}, false, fmt.Errorf("unexpected value type %T", v)
	}
	return e, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, e Entry, retention time.Duration) error {
	if retention > 0 {
		b.store.SetWithExpire(key, e, retention)
		return nil
	}
	b.store.Set(key, e)
	return nil
}
