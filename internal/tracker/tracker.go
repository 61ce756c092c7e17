// Package tracker values every holding in scope, compares the result with the
// snapshot last sent to its owner and notifies users about the positions
// whose valuation moved enough to matter.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/errorx"
	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/portfolio"
	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/llm"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/valuation"
)

// Mode selects which markets a run covers.
type Mode string

const (
	// ModeAuto covers the markets trading right now.
	ModeAuto   Mode = "auto"
	ModeMarket Mode = "market"
	ModeAll    Mode = "all"
)

// Options scope one run.
type Options struct {
	Mode   Mode
	Market markethours.Market
	// Force marks every evaluated position noteworthy.
	Force bool
	// UserID restricts the run to one user when set.
	UserID string
}

func (o Options) markets(now time.Time) ([]markethours.Market, error) {
	switch o.Mode {
	case ModeAuto, "":
		return markethours.OpenMarkets(now), nil
	case ModeMarket:
		if _, ok := markethours.ParseMarket(string(o.Market)); !ok {
			return nil, fmt.Errorf("tracker: unknown market %q", o.Market)
		}
		return []markethours.Market{o.Market}, nil
	case ModeAll:
		return markethours.All(), nil
	default:
		return nil, fmt.Errorf("tracker: unknown mode %q", o.Mode)
	}
}

// Item is the evaluation of one position.
type Item struct {
	Position portfolio.Position
	Quote    *market.Quote
	Result   valuation.Result
	// Composite cross-checks Result with DCF, PE and PB estimates.
	Composite valuation.Composite
	Change    valuation.Change
	// First is set when the position has never been notified.
	First      bool
	Noteworthy bool
}

// Report collects one user's evaluations.
type Report struct {
	UserID  string
	Markets []markethours.Market
	Items   []Item
	// Failed lists codes whose evaluation failed.
	Failed []string
	At     time.Time
}

// Noteworthy returns the items worth a notification.
func (r Report) Noteworthy() []Item {
	var out []Item
	for _, it := range r.Items {
		if it.Noteworthy {
			out = append(out, it)
		}
	}
	return out
}

// Summary counts the outcome of Run.
type Summary struct {
	Markets   []markethours.Market
	Users     int
	Evaluated int
	Failed    int
	Notified  int
	Skipped   int
	// Reports and Delivered (user ids notified) feed the run journal.
	Reports   []Report
	Delivered []string
}

// Tracker evaluates holdings. The quote source and cache are required.
type Tracker struct {
	ledger       portfolio.Ledger
	quotes       market.QuoteSource
	cache        *cache.Cache
	fundamentals market.FundamentalsSource
	estimator    llm.LLMClient
	model        string
	notifier     feishu.Sender
	thresholds   valuation.Thresholds
	now          func() time.Time
}

type Option func(*Tracker)

// WithFundamentals sets the provider consulted first for financials.
func WithFundamentals(src market.FundamentalsSource) Option {
	return func(t *Tracker) { t.fundamentals = src }
}

// WithEstimator lets the LLM estimate financials the provider cannot supply.
func WithEstimator(client llm.LLMClient, model string) Option {
	return func(t *Tracker) {
		t.estimator = client
		t.model = model
	}
}

func WithNotifier(s feishu.Sender) Option {
	return func(t *Tracker) { t.notifier = s }
}

func WithThresholds(th valuation.Thresholds) Option {
	return func(t *Tracker) { t.thresholds = th }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func New(ledger portfolio.Ledger, quotes market.QuoteSource, c *cache.Cache, opts ...Option) *Tracker {
	t := &Tracker{
		ledger:     ledger,
		quotes:     quotes,
		cache:      c,
		thresholds: valuation.DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Evaluate values every position in scope and returns one report per user
// holding any of them, users in sorted order. It never persists snapshots.
// A failing position is logged and listed in Report.Failed.
func (t *Tracker) Evaluate(ctx context.Context, opts Options) ([]Report, error) {
	now := t.now()
	markets, err := opts.markets(now)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, nil
	}

	var positions []portfolio.Position
	if opts.UserID != "" {
		positions, err = t.ledger.Positions(ctx, opts.UserID)
	} else {
		positions, err = t.ledger.AllPositions(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: load positions: %w", err)
	}

	byMarket := portfolio.GroupByMarket(positions)
	var inScope []portfolio.Position
	var active []markethours.Market
	for _, m := range markets {
		if held := byMarket[m]; len(held) > 0 {
			inScope = append(inScope, held...)
			active = append(active, m)
		}
	}

	users, byUser := portfolio.GroupByUser(inScope)
	reports := make([]Report, 0, len(users))
	for _, userID := range users {
		report := Report{UserID: userID, Markets: active, At: now}
		for _, p := range byUser[userID] {
			item, err := t.evaluate(ctx, p, opts.Force, now)
			if err != nil {
				logx.WithContext(ctx).Errorf("tracker: evaluate %s for %s: %v", p.Symbol.Code, userID, err)
				report.Failed = append(report.Failed, p.Symbol.Code)
				continue
			}
			report.Items = append(report.Items, item)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Run evaluates, notifies each user with noteworthy positions and, after a
// successful send, records the new snapshots. Delivery and store failures are
// collected into the returned error; the remaining users are still served.
func (t *Tracker) Run(ctx context.Context, opts Options) (Summary, error) {
	reports, err := t.Evaluate(ctx, opts)
	if err != nil {
		return Summary{}, err
	}
	markets, _ := opts.markets(t.now())
	summary := Summary{Markets: markets, Users: len(reports), Reports: reports}
	if len(reports) > 0 && t.notifier == nil {
		return summary, errors.New("tracker: no notifier configured")
	}

	var be errorx.BatchError
	for _, report := range reports {
		summary.Evaluated += len(report.Items)
		summary.Failed += len(report.Failed)
		items := report.Noteworthy()
		if len(items) == 0 {
			summary.Skipped++
			continue
		}
		outgoing := report
		outgoing.Items = items
		if err := t.notifier.SendCard(ctx, report.UserID, RenderCard(outgoing, true)); err != nil {
			logx.WithContext(ctx).Errorf("tracker: notify %s: %v", report.UserID, err)
			be.Add(fmt.Errorf("notify %s: %w", report.UserID, err))
			continue
		}
		summary.Notified++
		summary.Delivered = append(summary.Delivered, report.UserID)
		for _, it := range items {
			if err := t.ledger.RecordValuation(ctx, report.UserID, it.Result); err != nil {
				logx.WithContext(ctx).Errorf("tracker: record %s for %s: %v", it.Result.Code, report.UserID, err)
				be.Add(fmt.Errorf("record %s for %s: %w", it.Result.Code, report.UserID, err))
			}
		}
	}
	return summary, be.Err()
}

func (t *Tracker) evaluate(ctx context.Context, p portfolio.Position, force bool, now time.Time) (Item, error) {
	sym := p.Symbol
	quote, err := cache.GetOrFetch(ctx, t.cache, cache.KindQuote, sym.Market, sym.Code, func(ctx context.Context) (*market.Quote, error) {
		return t.quotes.Quote(ctx, sym)
	})
	if err != nil {
		return Item{}, fmt.Errorf("quote: %w", err)
	}
	if quote.Price <= 0 {
		return Item{}, fmt.Errorf("quote: no price for %s", sym.Code)
	}
	if err := t.ledger.UpdatePrice(ctx, p.UserID, sym.Code, quote.Price); err != nil {
		logx.WithContext(ctx).Errorf("tracker: update price %s: %v", sym.Code, err)
	}

	name := sym.Name
	if name == "" {
		name = quote.Name
	}
	fin := t.financials(ctx, sym, name, quote)
	res := valuation.Analyze(sym.Code, name, quote.Price, fin, now)

	p.LastPrice = quote.Price
	item := Item{Position: p, Quote: quote, Result: res, Composite: valuation.AnalyzeComposite(quote.Price, fin)}
	if p.Snapshot == nil {
		item.First = true
		item.Noteworthy = true
	} else {
		item.Change = valuation.Compare(res, *p.Snapshot)
		item.Noteworthy = force || item.Change.Noteworthy(t.thresholds)
	}
	if force {
		item.Noteworthy = true
	}
	return item, nil
}
