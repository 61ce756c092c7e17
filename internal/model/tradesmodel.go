package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const tradesRows = "id,user_id,code,name,market,side,shares,price,created_at_ms"

var _ TradesModel = (*defaultTradesModel)(nil)

type (
	// TradesModel is the append-only trade ledger.
	TradesModel interface {
		WithSession(session sqlx.Session) TradesModel
		Insert(ctx context.Context, data *Trades) error
		// RecentByUser returns trades newest first. Limit defaults to 50 when
		// non-positive.
		RecentByUser(ctx context.Context, userID string, limit int) ([]*Trades, error)
		DeleteByUser(ctx context.Context, userID string) (int64, error)
	}

	defaultTradesModel struct {
		conn  sqlx.SqlConn
		table string
	}

	Trades struct {
		ID          string `db:"id"`
		UserID      string `db:"user_id"`
		Code        string `db:"code"`
		Name        string `db:"name"`
		Market      string `db:"market"`
		Side        string `db:"side"`
		Shares      string `db:"shares"`
		Price       string `db:"price"`
		CreatedAtMs int64  `db:"created_at_ms"`
	}
)

// NewTradesModel returns a model for the database table.
func NewTradesModel(conn sqlx.SqlConn) TradesModel {
	return &defaultTradesModel{conn: conn, table: "trades"}
}

func (m *defaultTradesModel) WithSession(session sqlx.Session) TradesModel {
	return NewTradesModel(sqlx.NewSqlConnFromSession(session))
}

func (m *defaultTradesModel) Insert(ctx context.Context, data *Trades) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)", m.table, tradesRows)
	_, err := m.conn.ExecCtx(ctx, query,
		data.ID, data.UserID, data.Code, data.Name, data.Market, data.Side, data.Shares, data.Price, data.CreatedAtMs)
	if err != nil {
		return fmt.Errorf("trades.Insert: %w", err)
	}
	return nil
}

func (m *defaultTradesModel) RecentByUser(ctx context.Context, userID string, limit int) ([]*Trades, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at_ms DESC, id LIMIT $2", tradesRows, m.table)
	var rows []*Trades
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("trades.RecentByUser query: %w", err)
	}
	return rows, nil
}

func (m *defaultTradesModel) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", m.table)
	res, err := m.conn.ExecCtx(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("trades.DeleteByUser: %w", err)
	}
	return res.RowsAffected()
}
