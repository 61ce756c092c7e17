package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ PositionsModel = (*customPositionsModel)(nil)

type (
	// PositionsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customPositionsModel.
	PositionsModel interface {
		positionsModel
		WithSession(session sqlx.Session) PositionsModel
		ListByUser(ctx context.Context, userID string) ([]*Positions, error)
		ListAll(ctx context.Context) ([]*Positions, error)
		DeleteByUser(ctx context.Context, userID string) (int64, error)
		UpdateLastPrice(ctx context.Context, userID, code string, price float64, atMs int64) error
		UpdateSnapshot(ctx context.Context, data *Positions) error
	}

	customPositionsModel struct {
		*defaultPositionsModel
	}
)

// NewPositionsModel returns a model for the database table.
func NewPositionsModel(conn sqlx.SqlConn) PositionsModel {
	return &customPositionsModel{
		defaultPositionsModel: newPositionsModel(conn),
	}
}

func (m *customPositionsModel) WithSession(session sqlx.Session) PositionsModel {
	return NewPositionsModel(sqlx.NewSqlConnFromSession(session))
}

// ListByUser returns a user's positions ordered by code.
func (m *customPositionsModel) ListByUser(ctx context.Context, userID string) ([]*Positions, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY code", positionsRows, m.table)
	var rows []*Positions
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("positions.ListByUser query: %w", err)
	}
	return rows, nil
}

// ListAll returns every position ordered by user then code.
func (m *customPositionsModel) ListAll(ctx context.Context) ([]*Positions, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY user_id, code", positionsRows, m.table)
	var rows []*Positions
	if err := m.conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("positions.ListAll query: %w", err)
	}
	return rows, nil
}

func (m *customPositionsModel) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", m.table)
	res, err := m.conn.ExecCtx(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("positions.DeleteByUser: %w", err)
	}
	return res.RowsAffected()
}

func (m *customPositionsModel) UpdateLastPrice(ctx context.Context, userID, code string, price float64, atMs int64) error {
	query := fmt.Sprintf("UPDATE %s SET last_price = $1, updated_at_ms = $2 WHERE user_id = $3 AND code = $4", m.table)
	_, err := m.conn.ExecCtx(ctx, query, price, atMs, userID, code)
	return err
}

// UpdateSnapshot stores the last notified valuation of a position.
func (m *customPositionsModel) UpdateSnapshot(ctx context.Context, data *Positions) error {
	query := fmt.Sprintf(`UPDATE %s SET
    last_price = $1, snap_price = $2, snap_intrinsic = $3, snap_margin = $4,
    snap_recommendation = $5, snap_at_ms = $6
WHERE user_id = $7 AND code = $8`, m.table)
	_, err := m.conn.ExecCtx(ctx, query,
		data.LastPrice, data.SnapPrice, data.SnapIntrinsic, data.SnapMargin,
		data.SnapRecommendation, data.SnapAtMs, data.UserID, data.Code)
	if err != nil {
		return fmt.Errorf("positions.UpdateSnapshot: %w", err)
	}
	return nil
}
