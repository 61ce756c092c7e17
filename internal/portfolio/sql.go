package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"feishu-assistant/internal/model"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/valuation"
)

// SQLLedger is a Ledger over the positions, trades and valuations tables.
type SQLLedger struct {
	conn       sqlx.SqlConn
	positions  model.PositionsModel
	trades     model.TradesModel
	valuations model.ValuationsModel
	now        func() time.Time
}

var _ Ledger = (*SQLLedger)(nil)

func NewSQLLedger(conn sqlx.SqlConn) *SQLLedger {
	return &SQLLedger{
		conn:       conn,
		positions:  model.NewPositionsModel(conn),
		trades:     model.NewTradesModel(conn),
		valuations: model.NewValuationsModel(conn),
		now:        time.Now,
	}
}

func (l *SQLLedger) Positions(ctx context.Context, userID string) ([]Position, error) {
	rows, err := l.positions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (l *SQLLedger) AllPositions(ctx context.Context) ([]Position, error) {
	rows, err := l.positions.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (l *SQLLedger) find(ctx context.Context, positions model.PositionsModel, userID, code string) (*Position, error) {
	row, err := positions.FindOne(ctx, userID, code)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("portfolio: load %s: %w", code, err)
	}
	p, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (l *SQLLedger) Buy(ctx context.Context, userID string, sym market.Symbol, shares, price decimal.Decimal) (Position, error) {
	var result Position
	err := l.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		positions := l.positions.WithSession(session)
		now := l.now()
		cur, err := l.find(ctx, positions, userID, sym.Code)
		if err != nil {
			return err
		}
		next, err := applyBuy(cur, userID, sym, shares, price, now)
		if err != nil {
			return err
		}
		if err := positions.Upsert(ctx, toRow(next)); err != nil {
			return fmt.Errorf("portfolio: save %s: %w", sym.Code, err)
		}
		if err := l.trades.WithSession(session).Insert(ctx, tradeRow(userID, next.Symbol, SideBuy, shares, price, now)); err != nil {
			return err
		}
		result = next
		return nil
	})
	return result, err
}

func (l *SQLLedger) Sell(ctx context.Context, userID string, sym market.Symbol, shares, price decimal.Decimal) (*Position, error) {
	var result *Position
	err := l.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		positions := l.positions.WithSession(session)
		now := l.now()
		cur, err := l.find(ctx, positions, userID, sym.Code)
		if err != nil {
			return err
		}
		next, err := applySell(cur, shares, price, now)
		if err != nil {
			return err
		}
		if next == nil {
			err = positions.Delete(ctx, userID, sym.Code)
		} else {
			err = positions.Upsert(ctx, toRow(*next))
		}
		if err != nil {
			return fmt.Errorf("portfolio: save %s: %w", sym.Code, err)
		}
		if err := l.trades.WithSession(session).Insert(ctx, tradeRow(userID, cur.Symbol, SideSell, shares, price, now)); err != nil {
			return err
		}
		result = next
		return nil
	})
	return result, err
}

func (l *SQLLedger) Reset(ctx context.Context, userID string) (int, error) {
	var n int64
	err := l.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		var err error
		if n, err = l.positions.WithSession(session).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		_, err = l.trades.WithSession(session).DeleteByUser(ctx, userID)
		return err
	})
	return int(n), err
}

func (l *SQLLedger) Trades(ctx context.Context, userID string, limit int) ([]Trade, error) {
	rows, err := l.trades.RecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, row := range rows {
		shares, err := decimal.NewFromString(row.Shares)
		if err != nil {
			return nil, fmt.Errorf("portfolio: trade %s shares: %w", row.ID, err)
		}
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("portfolio: trade %s price: %w", row.ID, err)
		}
		out = append(out, Trade{
			ID:     row.ID,
			UserID: row.UserID,
			Symbol: market.Symbol{Code: row.Code, Name: row.Name, Market: markethours.Market(row.Market), Ticker: tickerOf(row.Code)},
			Side:   Side(row.Side),
			Shares: shares,
			Price:  price,
			At:     time.UnixMilli(row.CreatedAtMs),
		})
	}
	return out, nil
}

func (l *SQLLedger) RecordValuation(ctx context.Context, userID string, r valuation.Result) error {
	return l.conn.TransactCtx(ctx, func(ctx context.Context, session sqlx.Session) error {
		snap := r.Snapshot()
		err := l.positions.WithSession(session).UpdateSnapshot(ctx, &model.Positions{
			UserID:             userID,
			Code:               r.Code,
			LastPrice:          r.Price,
			SnapPrice:          snap.Price,
			SnapIntrinsic:      snap.Intrinsic,
			SnapMargin:         snap.Margin,
			SnapRecommendation: string(snap.Recommendation),
			SnapAtMs:           snap.At.UnixMilli(),
		})
		if err != nil {
			return err
		}
		return model.NewValuationsModel(sqlx.NewSqlConnFromSession(session)).Insert(ctx, &model.Valuations{
			ID:             uuid.NewString(),
			UserID:         userID,
			Code:           r.Code,
			Name:           r.Name,
			Price:          r.Price,
			Intrinsic:      r.Intrinsic,
			Margin:         r.Margin,
			Recommendation: string(r.Recommendation),
			AnalyzedAtMs:   r.AnalyzedAt.UnixMilli(),
		})
	})
}

func (l *SQLLedger) UpdatePrice(ctx context.Context, userID, code string, price float64) error {
	return l.positions.UpdateLastPrice(ctx, userID, code, price, l.now().UnixMilli())
}

func (l *SQLLedger) Alerts(ctx context.Context, userID string, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	rows, err := l.valuations.RecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, Alert{
			UserID:         row.UserID,
			Code:           row.Code,
			Name:           row.Name,
			Price:          row.Price,
			Intrinsic:      row.Intrinsic,
			Margin:         row.Margin,
			Recommendation: valuation.Recommendation(row.Recommendation),
			At:             time.UnixMilli(row.AnalyzedAtMs),
		})
	}
	return out, nil
}

func toRow(p Position) *model.Positions {
	row := &model.Positions{
		UserID:      p.UserID,
		Code:        p.Symbol.Code,
		Name:        p.Symbol.Name,
		Market:      string(p.Symbol.Market),
		Shares:      p.Shares.String(),
		AvgCost:     p.AvgCost.String(),
		LastPrice:   p.LastPrice,
		UpdatedAtMs: p.UpdatedAt.UnixMilli(),
	}
	if s := p.Snapshot; s != nil {
		row.SnapPrice, row.SnapIntrinsic, row.SnapMargin = s.Price, s.Intrinsic, s.Margin
		row.SnapRecommendation = string(s.Recommendation)
		row.SnapAtMs = s.At.UnixMilli()
	}
	return row
}

func fromRow(row *model.Positions) (Position, error) {
	shares, err := decimal.NewFromString(row.Shares)
	if err != nil {
		return Position{}, fmt.Errorf("portfolio: %s shares %q: %w", row.Code, row.Shares, err)
	}
	cost, err := decimal.NewFromString(row.AvgCost)
	if err != nil {
		return Position{}, fmt.Errorf("portfolio: %s avg cost %q: %w", row.Code, row.AvgCost, err)
	}
	p := Position{
		UserID:    row.UserID,
		Symbol:    market.Symbol{Code: row.Code, Ticker: tickerOf(row.Code), Name: row.Name, Market: markethours.Market(row.Market)},
		Shares:    shares,
		AvgCost:   cost,
		LastPrice: row.LastPrice,
		UpdatedAt: time.UnixMilli(row.UpdatedAtMs),
	}
	if row.SnapAtMs > 0 {
		p.Snapshot = &valuation.Snapshot{
			Price:          row.SnapPrice,
			Intrinsic:      row.SnapIntrinsic,
			Margin:         row.SnapMargin,
			Recommendation: valuation.Recommendation(row.SnapRecommendation),
			At:             time.UnixMilli(row.SnapAtMs),
		}
	}
	return p, nil
}

func fromRows(rows []*model.Positions) ([]Position, error) {
	out := make([]Position, 0, len(rows))
	for _, row := range rows {
		p, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func tradeRow(userID string, sym market.Symbol, side Side, shares, price decimal.Decimal, at time.Time) *model.Trades {
	return &model.Trades{
		ID:          uuid.NewString(),
		UserID:      userID,
		Code:        sym.Code,
		Name:        sym.Name,
		Market:      string(sym.Market),
		Side:        string(side),
		Shares:      shares.String(),
		Price:       price.String(),
		CreatedAtMs: at.UnixMilli(),
	}
}

func tickerOf(code string) string {
	if sym, ok := market.ParseCode(code); ok {
		return sym.Ticker
	}
	return code
}
