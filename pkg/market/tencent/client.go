// Package tencent reads realtime quotes from the Tencent finance quote
// endpoint (qt.gtimg.cn), which serves GBK encoded, "~" separated records.
package tencent

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

const (
	defaultBaseURL     = "http://qt.gtimg.cn"
	defaultHTTPTimeout = 10 * time.Second
	minFields          = 45
)

// Field positions within a quote record.
const (
	fieldName          = 1
	fieldCode          = 2
	fieldPrice         = 3
	fieldPrevClose     = 4
	fieldOpen          = 5
	fieldVolume        = 36
	fieldTime          = 30
	fieldChange        = 31
	fieldChangePercent = 32
	fieldHigh          = 33
	fieldLow           = 34
	fieldAmount        = 37
	fieldTurnover      = 38
	fieldPE            = 39
	fieldAmplitude     = 43
	fieldMarketCap     = 44
)

var currencies = map[markethours.Market]string{
	markethours.CN: "CNY",
	markethours.HK: "HKD",
	markethours.US: "USD",
}

// Client wraps access to the quote endpoint.
type Client struct {
	http *resty.Client
	now  func() time.Time
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the quote endpoint.
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

// WithMaxRetries sets the resty retry budget for transport failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.SetRetryCount(n)
		}
	}
}

// WithTransport swaps the HTTP transport, used by recorded tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.http.SetTransport(rt)
		}
	}
}

// NewClient constructs a quote client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(defaultHTTPTimeout).
			SetHeader("User-Agent", "Mozilla/5.0"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches and decodes the quote for sym.
func (c *Client) Quote(ctx context.Context, sym market.Symbol) (*market.Quote, error) {
	if sym.Code == "" {
		return nil, fmt.Errorf("%w: empty code", market.ErrSymbolNotFound)
	}
	resp, err := c.http.R().SetContext(ctx).Get("/q=" + sym.Code)
	if err != nil {
		return nil, fmt.Errorf("tencent: fetch %s: %w", sym.Code, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tencent: fetch %s: http %d", sym.Code, resp.StatusCode())
	}
	body, err := simplifiedchinese.GBK.NewDecoder().Bytes(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("tencent: decode %s: %w", sym.Code, err)
	}
	return parseQuote(sym, string(body), c.now())
}

// parseQuote decodes a record of the form v_sh600519="1~贵州茅台~600519~...";
func parseQuote(sym market.Symbol, body string, fetchedAt time.Time) (*market.Quote, error) {
	_, payload, ok := strings.Cut(body, `="`)
	if !ok {
		return nil, fmt.Errorf("tencent: unexpected payload for %s", sym.Code)
	}
	payload = strings.TrimSpace(payload)
	payload = strings.TrimSuffix(payload, ";")
	payload = strings.TrimSuffix(payload, `"`)

	values := strings.Split(payload, "~")
	if len(values) < minFields {
		// Unknown codes come back as v_pv_none_match="1";
		return nil, fmt.Errorf("%w: %s", market.ErrSymbolNotFound, sym.Code)
	}

	q := &market.Quote{
		Symbol:        sym,
		Name:          strings.TrimSpace(values[fieldName]),
		Currency:      currencies[sym.Market],
		Price:         number(values[fieldPrice]),
		PrevClose:     number(values[fieldPrevClose]),
		Open:          number(values[fieldOpen]),
		High:          number(values[fieldHigh]),
		Low:           number(values[fieldLow]),
		Change:        number(values[fieldChange]),
		ChangePercent: number(values[fieldChangePercent]),
		Volume:        number(values[fieldVolume]),
		Amount:        number(values[fieldAmount]),
		TurnoverRate:  number(values[fieldTurnover]),
		PE:            number(values[fieldPE]),
		Amplitude:     number(values[fieldAmplitude]),
		MarketCap:     number(values[fieldMarketCap]),
		UpdatedAt:     quoteTime(values[fieldTime], sym.Market, fetchedAt),
	}
	if q.Symbol.Name == "" {
		q.Symbol.Name = q.Name
	}
	if q.Price <= 0 {
		return nil, fmt.Errorf("tencent: no price for %s", sym.Code)
	}
	return q, nil
}

func number(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

var newYork = loadLocation("America/New_York", -5)

func loadLocation(name string, offsetHours int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offsetHours*60*60)
	}
	return loc
}

// quoteTime parses the exchange timestamp (20250110150003 for CN,
// 2025/01/10 16:08:05 for HK and US) in the venue's local time, falling back
// to the fetch time.
func quoteTime(raw string, m markethours.Market, fallback time.Time) time.Time {
	loc := markethours.Location()
	if m == markethours.US {
		loc = newYork
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"20060102150405", "2006/01/02 15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t
		}
	}
	return fallback
}
