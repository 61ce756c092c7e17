// Package yahoo reads index levels and quotes from the Yahoo Finance v8 chart
// endpoint.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

const (
	defaultBaseURL     = "https://query1.finance.yahoo.com"
	defaultHTTPTimeout = 10 * time.Second
	userAgent          = "Mozilla/5.0 (compatible; feishu-assistant)"
)

// Client wraps access to the chart endpoint.
type Client struct {
	http *resty.Client
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.http.SetBaseURL(url)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithMaxRetries sets the resty retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.SetRetryCount(n)
		}
	}
}

// WithTransport swaps the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.http.SetTransport(rt)
		}
	}
}

// NewClient constructs a chart client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(defaultHTTPTimeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta Meta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Meta is the summary block of a chart response.
type Meta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ShortName          string  `json:"shortName"`
	LongName           string  `json:"longName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"previousClose"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	DayHigh            float64 `json:"regularMarketDayHigh"`
	DayLow             float64 `json:"regularMarketDayLow"`
	Volume             float64 `json:"regularMarketVolume"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
}

// Name prefers the short display name.
func (m Meta) Name() string {
	if m.ShortName != "" {
		return m.ShortName
	}
	if m.LongName != "" {
		return m.LongName
	}
	return m.Symbol
}

// PrevClose falls back to the chart range close when previousClose is absent.
func (m Meta) PrevClose() float64 {
	if m.PreviousClose > 0 {
		return m.PreviousClose
	}
	return m.ChartPreviousClose
}

// UpdatedAt returns the last trade time, or zero when unknown.
func (m Meta) UpdatedAt() time.Time {
	if m.RegularMarketTime <= 0 {
		return time.Time{}
	}
	return time.Unix(m.RegularMarketTime, 0)
}

// Chart fetches the chart summary for a Yahoo symbol.
func (c *Client) Chart(ctx context.Context, symbol string) (*Meta, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", market.ErrSymbolNotFound)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{"interval": "1d", "range": "2d"}).
		Get("/v8/finance/chart/{symbol}")
	if err != nil {
		return nil, fmt.Errorf("yahoo: chart %s: %w", symbol, err)
	}

	var payload chartResponse
	decodeErr := json.Unmarshal(resp.Body(), &payload)
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: yahoo chart %s", market.ErrRateLimited, symbol)
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", market.ErrSymbolNotFound, symbol)
	case resp.IsError():
		return nil, fmt.Errorf("yahoo: chart %s: http %d", symbol, resp.StatusCode())
	case decodeErr != nil:
		return nil, fmt.Errorf("yahoo: decode chart %s: %w", symbol, decodeErr)
	}
	if e := payload.Chart.Error; e != nil {
		return nil, fmt.Errorf("%w: %s (%s)", market.ErrSymbolNotFound, symbol, e.Description)
	}
	if len(payload.Chart.Result) == 0 || payload.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%w: %s returned no price", market.ErrSymbolNotFound, symbol)
	}
	meta := payload.Chart.Result[0].Meta
	return &meta, nil
}

// Ticker converts a resolved symbol into Yahoo notation: 600519.SS, 000858.SZ,
// 0700.HK, BRK-B.
func Ticker(sym market.Symbol) (string, error) {
	switch sym.Market {
	case markethours.CN:
		if strings.HasPrefix(sym.Code, "sh") {
			return sym.Ticker + ".SS", nil
		}
		return sym.Ticker + ".SZ", nil
	case markethours.HK:
		t := strings.TrimLeft(sym.Ticker, "0")
		if n := len(t); n < 4 {
			t = strings.Repeat("0", 4-n) + t
		}
		return t + ".HK", nil
	case markethours.US:
		return strings.ReplaceAll(sym.Ticker, ".", "-"), nil
	}
	return "", fmt.Errorf("%w: %q", market.ErrUnsupported, sym.Market)
}
