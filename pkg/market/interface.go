package market

import (
	"context"
	"errors"
	"time"

	"feishu-assistant/pkg/markethours"
)

var (
	// ErrSymbolNotFound indicates the input could not be mapped to an instrument
	// or the upstream does not list it.
	ErrSymbolNotFound = errors.New("market: symbol not found")
	// ErrUnsupported is returned by a source asked for a market it does not cover.
	ErrUnsupported = errors.New("market: unsupported market")
	// ErrRateLimited signals upstream throttling.
	ErrRateLimited = errors.New("market: rate limited")
)

// Provider is anything built from a providers entry in market.yaml. Concrete
// providers implement one or more of the source interfaces below.
type Provider interface {
	Name() string
}

// QuoteSource returns realtime quotes for listed equities.
type QuoteSource interface {
	Quote(ctx context.Context, sym Symbol) (*Quote, error)
}

// IndexSource returns index levels by provider-native index symbol.
type IndexSource interface {
	Index(ctx context.Context, code string) (*IndexQuote, error)
}

// FundamentalsSource returns slower-moving company data.
type FundamentalsSource interface {
	Profile(ctx context.Context, sym Symbol) (*Profile, error)
	Valuation(ctx context.Context, sym Symbol) (*Valuation, error)
	Financials(ctx context.Context, sym Symbol) (*Financials, error)
}

// Symbol is a resolved instrument. Code carries the venue prefix used as the
// canonical key (sh600519, hk00700, usAAPL); Ticker is the bare exchange code.
type Symbol struct {
	Code   string             `msgpack:"code" json:"code"`
	Ticker string             `msgpack:"ticker" json:"ticker"`
	Name   string             `msgpack:"name" json:"name"`
	Market markethours.Market `msgpack:"market" json:"market"`
}

// Quote is a realtime equity quote. MarketCap is in 亿 of the listing currency.
type Quote struct {
	Symbol        Symbol    `msgpack:"symbol" json:"symbol"`
	Name          string    `msgpack:"name" json:"name"`
	Currency      string    `msgpack:"currency" json:"currency"`
	Price         float64   `msgpack:"price" json:"price"`
	PrevClose     float64   `msgpack:"prev_close" json:"prev_close"`
	Open          float64   `msgpack:"open" json:"open"`
	High          float64   `msgpack:"high" json:"high"`
	Low           float64   `msgpack:"low" json:"low"`
	Change        float64   `msgpack:"change" json:"change"`
	ChangePercent float64   `msgpack:"change_percent" json:"change_percent"`
	Volume        float64   `msgpack:"volume" json:"volume"`
	Amount        float64   `msgpack:"amount" json:"amount"`
	TurnoverRate  float64   `msgpack:"turnover_rate" json:"turnover_rate"`
	PE            float64   `msgpack:"pe" json:"pe"`
	Amplitude     float64   `msgpack:"amplitude" json:"amplitude"`
	MarketCap     float64   `msgpack:"market_cap" json:"market_cap"`
	UpdatedAt     time.Time `msgpack:"updated_at" json:"updated_at"`
}

// IndexQuote is the latest level of a market index.
type IndexQuote struct {
	Code          string    `msgpack:"code" json:"code"`
	Name          string    `msgpack:"name" json:"name"`
	Currency      string    `msgpack:"currency" json:"currency"`
	Price         float64   `msgpack:"price" json:"price"`
	PrevClose     float64   `msgpack:"prev_close" json:"prev_close"`
	ChangePercent float64   `msgpack:"change_percent" json:"change_percent"`
	UpdatedAt     time.Time `msgpack:"updated_at" json:"updated_at"`
}

// Profile describes the company behind a symbol.
type Profile struct {
	Name     string `msgpack:"name" json:"name"`
	Country  string `msgpack:"country" json:"country"`
	Currency string `msgpack:"currency" json:"currency"`
	Exchange string `msgpack:"exchange" json:"exchange"`
	Industry string `msgpack:"industry" json:"industry"`
	IPO      string `msgpack:"ipo" json:"ipo"`
	WebURL   string `msgpack:"weburl" json:"weburl"`
}

// Valuation holds ratio data. MarketCapMillions is in millions of USD as the
// upstream reports it; DividendYield is already a percent number.
type Valuation struct {
	PE                float64 `msgpack:"pe" json:"pe"`
	PB                float64 `msgpack:"pb" json:"pb"`
	DividendYield     float64 `msgpack:"dividend_yield" json:"dividend_yield"`
	MarketCapMillions float64 `msgpack:"market_cap_millions" json:"market_cap_millions"`
	Beta              float64 `msgpack:"beta" json:"beta"`
}

// Financials are growth, return and balance-sheet figures. Ratios named as
// percentages are percent numbers; EPS, BPS and FCF are per share.
type Financials struct {
	ROE           float64 `msgpack:"roe" json:"roe"`
	ROA           float64 `msgpack:"roa" json:"roa"`
	RevenueGrowth float64 `msgpack:"revenue_growth" json:"revenue_growth"`
	ProfitGrowth  float64 `msgpack:"profit_growth" json:"profit_growth"`
	EPS           float64 `msgpack:"eps" json:"eps"`
	BPS           float64 `msgpack:"bps" json:"bps"`
	FCF           float64 `msgpack:"fcf" json:"fcf"`
	DebtRatio     float64 `msgpack:"debt_ratio" json:"debt_ratio"`
	CurrentRatio  float64 `msgpack:"current_ratio" json:"current_ratio"`
}

// ChangePercent returns the percent move from prev to cur, 0 when prev is not positive.
func ChangePercent(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
