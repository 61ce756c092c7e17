package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// schema is portable between sqlite3 and postgres. Decimal quantities are
// stored as TEXT to keep them exact.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS positions (
    user_id             TEXT NOT NULL,
    code                TEXT NOT NULL,
    name                TEXT NOT NULL DEFAULT '',
    market              TEXT NOT NULL,
    shares              TEXT NOT NULL,
    avg_cost            TEXT NOT NULL,
    last_price          DOUBLE PRECISION NOT NULL DEFAULT 0,
    snap_price          DOUBLE PRECISION NOT NULL DEFAULT 0,
    snap_intrinsic      DOUBLE PRECISION NOT NULL DEFAULT 0,
    snap_margin         DOUBLE PRECISION NOT NULL DEFAULT 0,
    snap_recommendation TEXT NOT NULL DEFAULT '',
    snap_at_ms          BIGINT NOT NULL DEFAULT 0,
    updated_at_ms       BIGINT NOT NULL,
    PRIMARY KEY (user_id, code)
)`,
	`CREATE TABLE IF NOT EXISTS trades (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    code          TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    market        TEXT NOT NULL,
    side          TEXT NOT NULL,
    shares        TEXT NOT NULL,
    price         TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_user_created ON trades (user_id, created_at_ms)`,
	`CREATE TABLE IF NOT EXISTS sessions (
    user_id       TEXT PRIMARY KEY,
    history       TEXT NOT NULL,
    state         TEXT NOT NULL,
    updated_at_ms BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions (updated_at_ms)`,
	`CREATE TABLE IF NOT EXISTS valuations (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL DEFAULT '',
    code           TEXT NOT NULL,
    name           TEXT NOT NULL DEFAULT '',
    price          DOUBLE PRECISION NOT NULL,
    intrinsic      DOUBLE PRECISION NOT NULL,
    margin         DOUBLE PRECISION NOT NULL,
    recommendation TEXT NOT NULL,
    analyzed_at_ms BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_valuations_user ON valuations (user_id, analyzed_at_ms)`,
	`CREATE TABLE IF NOT EXISTS cache_entries (
    cache_key     TEXT PRIMARY KEY,
    payload       BYTEA NOT NULL,
    fetched_at_ms BIGINT NOT NULL
)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, conn sqlx.SqlConn) error {
	for _, stmt := range schema {
		if _, err := conn.ExecCtx(ctx, stmt); err != nil {
			return fmt.Errorf("model: migrate: %w", err)
		}
	}
	return nil
}
