// Package finnhub reads company profiles and fundamentals from finnhub.io.
// Only US listings are covered.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"feishu-assistant/pkg/market"
)

const (
	defaultBaseURL     = "https://finnhub.io/api/v1"
	defaultHTTPTimeout = 10 * time.Second
	// Free tier allows 60 calls per minute.
	defaultRatePerMinute = 60
	tokenHeader          = "X-Finnhub-Token"
)

// Client wraps the Finnhub REST API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.http.SetBaseURL(url)
		}
	}
}

// WithAPIKey sets the token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.http.SetHeader(tokenHeader, key)
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

// WithRateLimit caps outgoing requests per minute. Zero disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst(perMinute))
	}
}

func burst(perMinute int) int {
	if b := perMinute / 6; b > 1 {
		return b
	}
	return 1
}

// NewClient constructs a Finnhub client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(defaultHTTPTimeout).
			SetHeader("Accept", "application/json"),
	}
	WithRateLimit(defaultRatePerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProfileResponse mirrors /stock/profile2.
type ProfileResponse struct {
	Name                 string  `json:"name"`
	Ticker               string  `json:"ticker"`
	Country              string  `json:"country"`
	Currency             string  `json:"currency"`
	Exchange             string  `json:"exchange"`
	Industry             string  `json:"finnhubIndustry"`
	IPO                  string  `json:"ipo"`
	WebURL               string  `json:"weburl"`
	MarketCapitalization float64 `json:"marketCapitalization"`
}

// Metrics is the subset of /stock/metric?metric=all that is consumed.
type Metrics struct {
	PETTM                float64 `json:"peTTM"`
	PEBasicExclExtraTTM  float64 `json:"peBasicExclExtraTTM"`
	PBAnnual             float64 `json:"pbAnnual"`
	DividendYield        float64 `json:"dividendYieldIndicatedAnnual"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	ROETTM               float64 `json:"roeTTM"`
	RevenueGrowthTTMYoy  float64 `json:"revenueGrowthTTMYoy"`
	EPSGrowthTTMYoy      float64 `json:"epsGrowthTTMYoy"`
	Beta                 float64 `json:"beta"`
	EPSTTM               float64 `json:"epsTTM"`
	BookValuePerShare    float64 `json:"bookValuePerShareAnnual"`
	CashFlowPerShareTTM  float64 `json:"cashFlowPerShareTTM"`
	ROATTM               float64 `json:"roaTTM"`
	CurrentRatioAnnual   float64 `json:"currentRatioAnnual"`
	DebtToEquityAnnual   float64 `json:"totalDebt/totalEquityAnnual"`
}

// DebtRatio converts debt-to-equity into debt as a percent of debt plus
// equity. Zero when the upstream omitted it.
func (m Metrics) DebtRatio() float64 {
	if m.DebtToEquityAnnual <= 0 {
		return 0
	}
	return m.DebtToEquityAnnual / (1 + m.DebtToEquityAnnual) * 100
}

// PE prefers the trailing PE and falls back to basic PE excluding
// extraordinary items.
func (m Metrics) PE() float64 {
	if m.PETTM != 0 {
		return m.PETTM
	}
	return m.PEBasicExclExtraTTM
}

type metricResponse struct {
	Symbol string  `json:"symbol"`
	Metric Metrics `json:"metric"`
}

// Profile fetches the company profile for a US ticker.
func (c *Client) Profile(ctx context.Context, ticker string) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := c.get(ctx, "/stock/profile2", map[string]string{"symbol": ticker}, &out); err != nil {
		return nil, err
	}
	// Unknown tickers return {}.
	if out.Name == "" && out.Ticker == "" {
		return nil, fmt.Errorf("%w: %s", market.ErrSymbolNotFound, ticker)
	}
	return &out, nil
}

// Metrics fetches the basic financials for a US ticker.
func (c *Client) Metrics(ctx context.Context, ticker string) (*Metrics, error) {
	var out metricResponse
	if err := c.get(ctx, "/stock/metric", map[string]string{"symbol": ticker, "metric": "all"}, &out); err != nil {
		return nil, err
	}
	if out.Metric == (Metrics{}) {
		return nil, fmt.Errorf("%w: no metrics for %s", market.ErrSymbolNotFound, ticker)
	}
	return &out.Metric, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("finnhub: rate limiter: %w", err)
		}
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).Get(path)
	if err != nil {
		return fmt.Errorf("finnhub: %s: %w", path, err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: finnhub %s", market.ErrRateLimited, path)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("finnhub: %s: unauthorized (http %d), check FINNHUB_API_KEY", path, code)
	case resp.IsError():
		return fmt.Errorf("finnhub: %s: http %d", path, code)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("finnhub: decode %s: %w", path, err)
	}
	return nil
}
