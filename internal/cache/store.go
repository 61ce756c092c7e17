package cache

import (
	"context"
	"errors"
	"time"

	"feishu-assistant/internal/model"
)

// StoreBackend persists entries in the cache_entries table so they survive
// restarts. Retention is not enforced; stale rows are overwritten on the next
// fetch.
type StoreBackend struct {
	entries model.CacheEntriesModel
}

func NewStoreBackend(entries model.CacheEntriesModel) *StoreBackend {
	return &StoreBackend{entries: entries}
}

func (b *StoreBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	row, err := b.entries.FindOne(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Payload: row.Payload, FetchedAtMs: row.FetchedAtMs}, true, nil
}

func (b *StoreBackend) Set(ctx context.Context, key string, e Entry, _ time.Duration) error {
	return b.entries.Upsert(ctx, &model.CacheEntries{CacheKey: key, Payload: e.Payload, FetchedAtMs: e.FetchedAtMs})
}
