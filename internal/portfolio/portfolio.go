// Package portfolio keeps each user's holdings with exact decimal cost basis
// and an append-only trade ledger.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/valuation"
)

var (
	// ErrInsufficientShares is returned when selling more than is held. The
	// position is left unchanged.
	ErrInsufficientShares = errors.New("portfolio: insufficient shares")
	// ErrInvalidTrade rejects non-positive share counts or prices.
	ErrInvalidTrade = errors.New("portfolio: shares and price must be positive")
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Position is an open holding. Snapshot is nil until a valuation has been
// notified for it.
type Position struct {
	UserID    string
	Symbol    market.Symbol
	Shares    decimal.Decimal
	AvgCost   decimal.Decimal
	LastPrice float64
	Snapshot  *valuation.Snapshot
	UpdatedAt time.Time
}

// CostBasis is shares times average cost.
func (p Position) CostBasis() decimal.Decimal {
	return p.Shares.Mul(p.AvgCost)
}

// MarketValue values the position at LastPrice; zero when no price is known.
func (p Position) MarketValue() decimal.Decimal {
	return p.Shares.Mul(decimal.NewFromFloat(p.LastPrice))
}

// UnrealizedPnL is MarketValue minus CostBasis, or zero without a price.
func (p Position) UnrealizedPnL() decimal.Decimal {
	if p.LastPrice <= 0 {
		return decimal.Zero
	}
	return p.MarketValue().Sub(p.CostBasis())
}

// Trade is one ledger entry.
type Trade struct {
	ID     string
	UserID string
	Symbol market.Symbol
	Side   Side
	Shares decimal.Decimal
	Price  decimal.Decimal
	At     time.Time
}

// Alert is one valuation that was recorded for a user by the tracker.
type Alert struct {
	UserID         string
	Code           string
	Name           string
	Price          float64
	Intrinsic      float64
	Margin         float64
	Recommendation valuation.Recommendation
	At             time.Time
}

func alertOf(userID string, r valuation.Result) Alert {
	return Alert{
		UserID:         userID,
		Code:           r.Code,
		Name:           r.Name,
		Price:          r.Price,
		Intrinsic:      r.Intrinsic,
		Margin:         r.Margin,
		Recommendation: r.Recommendation,
		At:             r.AnalyzedAt,
	}
}

// Ledger stores positions and trades.
type Ledger interface {
	// Positions returns a user's open positions ordered by code.
	Positions(ctx context.Context, userID string) ([]Position, error)
	// AllPositions returns every open position ordered by user then code.
	AllPositions(ctx context.Context) ([]Position, error)
	Buy(ctx context.Context, userID string, sym market.Symbol, shares, price decimal.Decimal) (Position, error)
	// Sell returns the remaining position, or nil when everything was sold.
	Sell(ctx context.Context, userID string, sym market.Symbol, shares, price decimal.Decimal) (*Position, error)
	// Reset removes all of a user's positions and returns how many there were.
	Reset(ctx context.Context, userID string) (int, error)
	Trades(ctx context.Context, userID string, limit int) ([]Trade, error)
	// UpdatePrice records the latest seen price of a held position. Unknown
	// positions are ignored.
	UpdatePrice(ctx context.Context, userID, code string, price float64) error
	// RecordValuation stores snap as the position's notified snapshot and
	// appends the valuation to the history.
	RecordValuation(ctx context.Context, userID string, r valuation.Result) error
	// Alerts returns the user's recorded valuations, newest first. A
	// non-positive limit means the default of 20.
	Alerts(ctx context.Context, userID string, limit int) ([]Alert, error)
}

const defaultAlertLimit = 20

// applyBuy returns the position after buying shares at price:
// avg = (oldShares*oldCost + shares*price) / (oldShares + shares).
func applyBuy(cur *Position, userID string, sym market.Symbol, shares, price decimal.Decimal, now time.Time) (Position, error) {
	if !shares.IsPositive() || !price.IsPositive() {
		return Position{}, ErrInvalidTrade
	}
	next := Position{UserID: userID, Symbol: sym, Shares: shares, AvgCost: price, UpdatedAt: now}
	if cur != nil {
		next = *cur
		total := cur.Shares.Add(shares)
		next.AvgCost = cur.Shares.Mul(cur.AvgCost).Add(shares.Mul(price)).Div(total)
		next.Shares = total
		next.UpdatedAt = now
		if sym.Name != "" {
			next.Symbol.Name = sym.Name
		}
	}
	next.LastPrice = price.InexactFloat64()
	return next, nil
}

// applySell returns the remaining position, nil when fully sold.
func applySell(cur *Position, shares, price decimal.Decimal, now time.Time) (*Position, error) {
	if !shares.IsPositive() || !price.IsPositive() {
		return nil, ErrInvalidTrade
	}
	held := decimal.Zero
	if cur != nil {
		held = cur.Shares
	}
	if shares.GreaterThan(held) {
		return nil, fmt.Errorf("%w: hold %s, selling %s", ErrInsufficientShares, held.String(), shares.String())
	}
	if shares.Equal(held) {
		return nil, nil
	}
	next := *cur
	next.Shares = held.Sub(shares)
	next.LastPrice = price.InexactFloat64()
	next.UpdatedAt = now
	return &next, nil
}

// GroupByMarket buckets positions by market.
func GroupByMarket(positions []Position) map[markethours.Market][]Position {
	out := make(map[markethours.Market][]Position)
	for _, p := range positions {
		out[p.Symbol.Market] = append(out[p.Symbol.Market], p)
	}
	return out
}

// GroupByUser buckets positions by user, returning user ids in sorted order.
func GroupByUser(positions []Position) ([]string, map[string][]Position) {
	out := make(map[string][]Position)
	for _, p := range positions {
		out[p.UserID] = append(out[p.UserID], p)
	}
	users := make([]string, 0, len(out))
	for u := range out {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, out
}
