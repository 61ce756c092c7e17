package portfolio

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/valuation"
)

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu         sync.Mutex
	positions  map[string]map[string]Position
	trades     map[string][]Trade
	valuations []valuation.Result
	alerts     map[string][]Alert
	now        func() time.Time
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		positions: make(map[string]map[string]Position),
		trades:    make(map[string][]Trade),
		alerts:    make(map[string][]Alert),
		now:       time.Now,
	}
}

func (l *MemoryLedger) Positions(_ context.Context, userID string) ([]Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedPositions(l.positions[userID]), nil
}

func (l *MemoryLedger) AllPositions(_ context.Context) ([]Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	users := make([]string, 0, len(l.positions))
	for u := range l.positions {
		users = append(users, u)
	}
	sort.Strings(users)
	var out []Position
	for _, u := range users {
		out = append(out, sortedPositions(l.positions[u])...)
	}
	return out, nil
}

func sortedPositions(m map[string]Position) []Position {
	out := make([]Position, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol.Code < out[j].Symbol.Code })
	return out
}

func (l *MemoryLedger) current(userID, code string) *Position {
	if p, ok := l.positions[userID][code]; ok {
		return &p
	}
	return nil
}

func (l *MemoryLedger) Buy(_ context.Context, userID string, sym market.Symbol, shares, price decimal.Decimal) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	next, err := applyBuy(l.current(userID, sym.Code), userID, sym, shares, price, now)
	if err != nil {
		return Position{}, err
	}
	if l.positions[userID] == nil {
		l.positions[userID] = make(map[string]Position)
	}
	l.positions[userID][sym.Code] = next
	l.appendTrade(userID, sym, SideBuy, shares, price, now)
	return next, nil
}

func (l *MemoryLedger) Sell(_ context.Context, userID string, sym market.Symbol, shares, price decimal.Decimal) (*Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cur := l.current(userID, sym.Code)
	next, err := applySell(cur, shares, price, now)
	if err != nil {
		return nil, err
	}
	if next == nil {
		delete(l.positions[userID], sym.Code)
	} else {
		l.positions[userID][sym.Code] = *next
	}
	l.appendTrade(userID, cur.Symbol, SideSell, shares, price, now)
	return next, nil
}

func (l *MemoryLedger) appendTrade(userID string, sym market.Symbol, side Side, shares, price decimal.Decimal, at time.Time) {
	l.trades[userID] = append(l.trades[userID], Trade{
		ID: uuid.NewString(), UserID: userID, Symbol: sym, Side: side, Shares: shares, Price: price, At: at,
	})
}

func (l *MemoryLedger) Reset(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.positions[userID])
	delete(l.positions, userID)
	delete(l.trades, userID)
	return n, nil
}

func (l *MemoryLedger) Trades(_ context.Context, userID string, limit int) ([]Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.trades[userID]
	out := make([]Trade, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (l *MemoryLedger) RecordValuation(_ context.Context, userID string, r valuation.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[userID][r.Code]; ok {
		snap := r.Snapshot()
		p.Snapshot = &snap
		p.LastPrice = r.Price
		l.positions[userID][r.Code] = p
	}
	l.valuations = append(l.valuations, r)
	l.alerts[userID] = append(l.alerts[userID], alertOf(userID, r))
	return nil
}

func (l *MemoryLedger) Alerts(_ context.Context, userID string, limit int) ([]Alert, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	all := l.alerts[userID]
	out := make([]Alert, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (l *MemoryLedger) UpdatePrice(_ context.Context, userID, code string, price float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[userID][code]; ok {
		p.LastPrice = price
		p.UpdatedAt = l.now()
		l.positions[userID][code] = p
	}
	return nil
}

// Valuations returns the recorded valuation history, oldest first.
func (l *MemoryLedger) Valuations() []valuation.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]valuation.Result(nil), l.valuations...)
}
