package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const sessionsRows = "user_id,history,state,updated_at_ms"

var _ SessionsModel = (*defaultSessionsModel)(nil)

type (
	// SessionsModel persists one JSON blob pair per user.
	SessionsModel interface {
		Upsert(ctx context.Context, data *Sessions) error
		FindOne(ctx context.Context, userID string) (*Sessions, error)
		Delete(ctx context.Context, userID string) error
		// DeleteIdle removes sessions last updated before cutoffMs.
		DeleteIdle(ctx context.Context, cutoffMs int64) (int64, error)
	}

	defaultSessionsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	Sessions struct {
		UserID      string `db:"user_id"`
		History     string `db:"history"`
		State       string `db:"state"`
		UpdatedAtMs int64  `db:"updated_at_ms"`
	}
)

// NewSessionsModel returns a model for the database table.
func NewSessionsModel(conn sqlx.SqlConn) SessionsModel {
	return &defaultSessionsModel{conn: conn, table: "sessions"}
}

func (m *defaultSessionsModel) Upsert(ctx context.Context, data *Sessions) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4)
ON CONFLICT (user_id) DO UPDATE SET
    history = excluded.history,
    state = excluded.state,
    updated_at_ms = excluded.updated_at_ms`, m.table, sessionsRows)
	_, err := m.conn.ExecCtx(ctx, query, data.UserID, data.History, data.State, data.UpdatedAtMs)
	return err
}

func (m *defaultSessionsModel) FindOne(ctx context.Context, userID string) (*Sessions, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 LIMIT 1", sessionsRows, m.table)
	var resp Sessions
	err := m.conn.QueryRowCtx(ctx, &resp, query, userID)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultSessionsModel) Delete(ctx context.Context, userID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", m.table)
	_, err := m.conn.ExecCtx(ctx, query, userID)
	return err
}

func (m *defaultSessionsModel) DeleteIdle(ctx context.Context, cutoffMs int64) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE updated_at_ms < $1", m.table)
	res, err := m.conn.ExecCtx(ctx, query, cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("sessions.DeleteIdle: %w", err)
	}
	return res.RowsAffected()
}
