package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const valuationsRows = "id,user_id,code,name,price,intrinsic,margin,recommendation,analyzed_at_ms"

var _ ValuationsModel = (*defaultValuationsModel)(nil)

type (
	// ValuationsModel is the append-only history of notified valuations.
	ValuationsModel interface {
		Insert(ctx context.Context, data *Valuations) error
		RecentByUser(ctx context.Context, userID string, limit int) ([]*Valuations, error)
	}

	defaultValuationsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	Valuations struct {
		ID             string  `db:"id"`
		UserID         string  `db:"user_id"`
		Code           string  `db:"code"`
		Name           string  `db:"name"`
		Price          float64 `db:"price"`
		Intrinsic      float64 `db:"intrinsic"`
		Margin         float64 `db:"margin"`
		Recommendation string  `db:"recommendation"`
		AnalyzedAtMs   int64   `db:"analyzed_at_ms"`
	}
)

// NewValuationsModel returns a model for the database table.
func NewValuationsModel(conn sqlx.SqlConn) ValuationsModel {
	return &defaultValuationsModel{conn: conn, table: "valuations"}
}

func (m *defaultValuationsModel) Insert(ctx context.Context, data *Valuations) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)", m.table, valuationsRows)
	_, err := m.conn.ExecCtx(ctx, query,
		data.ID, data.UserID, data.Code, data.Name, data.Price, data.Intrinsic, data.Margin, data.Recommendation, data.AnalyzedAtMs)
	if err != nil {
		return fmt.Errorf("valuations.Insert: %w", err)
	}
	return nil
}

// RecentByUser returns the user's newest entries first. Limit defaults to 20.
func (m *defaultValuationsModel) RecentByUser(ctx context.Context, userID string, limit int) ([]*Valuations, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY analyzed_at_ms DESC LIMIT $2", valuationsRows, m.table)
	var rows []*Valuations
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("valuations.RecentByUser query: %w", err)
	}
	return rows, nil
}
