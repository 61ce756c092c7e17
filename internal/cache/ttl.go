package cache

import (
	"time"

	"feishu-assistant/internal/config"
	"feishu-assistant/pkg/markethours"
)

// minRetention keeps unbounded closed-market entries across a weekend.
const minRetention = 72 * time.Hour

type window struct {
	open   time.Duration
	closed time.Duration
}

// TTLPolicy maps a kind and market state to a freshness window. A zero
// duration means never stale for that state.
type TTLPolicy struct {
	windows map[Kind]window
}

// DefaultTTLPolicy returns the built-in windows.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{windows: map[Kind]window{
		KindQuote:      {open: 30 * time.Second},
		KindIndex:      {open: time.Minute},
		KindValuation:  {open: 2 * time.Hour, closed: 12 * time.Hour},
		KindFinancials: {open: 24 * time.Hour, closed: 24 * time.Hour},
		KindProfile:    {open: 7 * 24 * time.Hour, closed: 7 * 24 * time.Hour},
		KindSearch:     {open: 30 * time.Minute, closed: 30 * time.Minute},
		KindNews:       {open: 6 * time.Hour, closed: 6 * time.Hour},
	}}
}

// NewTTLPolicy converts the configured seconds into a policy.
func NewTTLPolicy(cfg config.CacheTTL) TTLPolicy {
	return TTLPolicy{windows: map[Kind]window{
		KindQuote:      {open: seconds(cfg.QuoteOpen), closed: seconds(cfg.QuoteClosed)},
		KindIndex:      {open: seconds(cfg.IndexOpen), closed: seconds(cfg.IndexClosed)},
		KindValuation:  {open: seconds(cfg.ValuationOpen), closed: seconds(cfg.ValuationClosed)},
		KindFinancials: {open: seconds(cfg.Financials), closed: seconds(cfg.Financials)},
		KindProfile:    {open: seconds(cfg.Profile), closed: seconds(cfg.Profile)},
		KindSearch:     {open: seconds(cfg.Search), closed: seconds(cfg.Search)},
		KindNews:       {open: seconds(cfg.News), closed: seconds(cfg.News)},
	}}
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// TTL returns the window for kind given whether its market is open.
func (p TTLPolicy) TTL(kind Kind, open bool) time.Duration {
	w := p.windows[kind]
	if open {
		return w.open
	}
	return w.closed
}

// Fresh reports whether an entry fetched at fetchedAt may still be served at
// now. The market state is evaluated at read time.
func (p TTLPolicy) Fresh(kind Kind, m markethours.Market, fetchedAt, now time.Time) bool {
	open := markethours.IsOpen(m, now)
	ttl := p.TTL(kind, open)
	if ttl == 0 {
		// Unbounded only applies while the market is closed; an open window of
		// zero disables caching.
		return !open
	}
	return now.Sub(fetchedAt) < ttl
}

// Retention is how long a backend should keep entries: the largest window,
// at least minRetention.
func (p TTLPolicy) Retention() time.Duration {
	longest := minRetention
	for _, w := range p.windows {
		if w.open > longest {
			longest = w.open
		}
		if w.closed > longest {
			longest = w.closed
		}
	}
	return longest
}
