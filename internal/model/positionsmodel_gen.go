package model

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

const positionsRows = "user_id,code,name,market,shares,avg_cost,last_price,snap_price,snap_intrinsic,snap_margin,snap_recommendation,snap_at_ms,updated_at_ms"

type (
	positionsModel interface {
		Upsert(ctx context.Context, data *Positions) error
		FindOne(ctx context.Context, userID, code string) (*Positions, error)
		Delete(ctx context.Context, userID, code string) error
	}

	defaultPositionsModel struct {
		conn  sqlx.SqlConn
		table string
	}

	// Positions is a row of the positions table. Shares and AvgCost hold
	// decimal strings; a zero SnapAtMs means no snapshot has been notified.
	Positions struct {
		UserID             string  `db:"user_id"`
		Code               string  `db:"code"`
		Name               string  `db:"name"`
		Market             string  `db:"market"`
		Shares             string  `db:"shares"`
		AvgCost            string  `db:"avg_cost"`
		LastPrice          float64 `db:"last_price"`
		SnapPrice          float64 `db:"snap_price"`
		SnapIntrinsic      float64 `db:"snap_intrinsic"`
		SnapMargin         float64 `db:"snap_margin"`
		SnapRecommendation string  `db:"snap_recommendation"`
		SnapAtMs           int64   `db:"snap_at_ms"`
		UpdatedAtMs        int64   `db:"updated_at_ms"`
	}
)

func newPositionsModel(conn sqlx.SqlConn) *defaultPositionsModel {
	return &defaultPositionsModel{conn: conn, table: "positions"}
}

// Upsert writes the holding columns; snapshot columns are only set on insert.
func (m *defaultPositionsModel) Upsert(ctx context.Context, data *Positions) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (user_id, code) DO UPDATE SET
    name = excluded.name,
    market = excluded.market,
    shares = excluded.shares,
    avg_cost = excluded.avg_cost,
    last_price = excluded.last_price,
    updated_at_ms = excluded.updated_at_ms`, m.table, positionsRows)
	_, err := m.conn.ExecCtx(ctx, query,
		data.UserID, data.Code, data.Name, data.Market, data.Shares, data.AvgCost, data.LastPrice,
		data.SnapPrice, data.SnapIntrinsic, data.SnapMargin, data.SnapRecommendation, data.SnapAtMs,
		data.UpdatedAtMs)
	return err
}

func (m *defaultPositionsModel) FindOne(ctx context.Context, userID, code string) (*Positions, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 AND code = $2 LIMIT 1", positionsRows, m.table)
	var resp Positions
	err := m.conn.QueryRowCtx(ctx, &resp, query, userID, code)
	switch err {
	case nil:
		return &resp, nil
	case sqlx.ErrNotFound:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (m *defaultPositionsModel) Delete(ctx context.Context, userID, code string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = $1 AND code = $2", m.table)
	_, err := m.conn.ExecCtx(ctx, query, userID, code)
	return err
}
