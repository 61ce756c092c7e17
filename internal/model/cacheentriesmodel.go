package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const cacheEntriesRows = "cache_key,payload,fetched_at_ms"

var _ CacheEntriesModel = (*defaultCacheEntriesModel)(nil)

type (
	// CacheEntriesModel backs the persistent cache backend.
	CacheEntriesModel interface {
		Upsert(ctx context.Context, data *CacheEntries) error
		FindOne(ctx context.Context, key string) (*CacheEntries, error)
		Delete(ctx context.Context, key string) error
	}

	defaultCacheEntriesModel struct {
		conn  sqlx.SqlConn
		table string
	}

	CacheEntries struct {
		CacheKey    string `db:"cache_key"`
		Payload     []byte `db:"payload"`
		FetchedAtMs int64  `db:"fetched_at_ms"`
	}
)

// NewCacheEntriesModel returns a model for the database table.
func NewCacheEntriesModel(conn sqlx.SqlConn) CacheEntriesModel {
	return &defaultCacheEntriesModel{conn: conn, table: "cache_entries"}
}

func (m *defaultCacheEntriesModel) Upsert(ctx context.Context, data *CacheEntries) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3)
ON CONFLICT (cache_key) DO UPDATE SET
    payload = excluded.payload,
    fetched_at_ms = excluded.fetched_at_ms`, m.table, cacheEntriesRows)
	_, err := m.conn.ExecCtx(ctx, query, data.CacheKey, data.Payload, data.FetchedAtMs)
	return err
}

func (m *defaultCacheEntriesModel) FindOne(ctx context.Context, key string) (*CacheEntries, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE cache_key = $1 LIMIT 1", cacheEntriesRows, m.table)
	var resp CacheEntries
	err := m.conn.QueryRowCtx(ctx, &resp, query, key)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultCacheEntriesModel) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, key)
	return err
}
