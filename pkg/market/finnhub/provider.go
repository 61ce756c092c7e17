package finnhub

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/pkg/confkit"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

const (
	providerType = "finnhub"
	apiKeyEnv    = "FINNHUB_API_KEY"
)

// Provider exposes Finnhub as a market.FundamentalsSource.
type Provider struct {
	name    string
	client  *Client
	timeout time.Duration
}

var _ market.FundamentalsSource = (*Provider)(nil)

// NewProvider wraps client under the given provider name.
func NewProvider(name string, client *Client, timeout time.Duration) *Provider {
	if client == nil {
		client = NewClient()
	}
	return &Provider{name: name, client: client, timeout: timeout}
}

func init() {
	market.RegisterProvider(providerType, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		key := confkit.Override(cfg.APIKey, apiKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("finnhub: api key is required (set %s)", apiKeyEnv)
		}
		client := NewClient(
			WithBaseURL(cfg.BaseURL),
			WithAPIKey(key),
			WithTimeout(cfg.Timeout),
			WithMaxRetries(cfg.MaxRetries),
			WithRateLimit(rateOrDefault(cfg.RateLimit)),
		)
		return NewProvider(name, client, cfg.Timeout), nil
	})
}

func rateOrDefault(perMinute int) int {
	if perMinute > 0 {
		return perMinute
	}
	return defaultRatePerMinute
}

// Name implements market.Provider.
func (p *Provider) Name() string { return p.name }

func (p *Provider) ticker(sym market.Symbol) (string, error) {
	if sym.Market != markethours.US {
		return "", fmt.Errorf("%w: finnhub covers US listings, got %s", market.ErrUnsupported, sym.Code)
	}
	return sym.Ticker, nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return ctx, func() {}
}

// Profile implements market.FundamentalsSource.
func (p *Provider) Profile(ctx context.Context, sym market.Symbol) (*market.Profile, error) {
	ticker, err := p.ticker(sym)
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	prof, err := p.client.Profile(ctx, ticker)
	if err != nil {
		logx.WithContext(ctx).Errorf("finnhub: profile provider=%s ticker=%s err=%v", p.name, ticker, err)
		return nil, err
	}
	return &market.Profile{
		Name:     prof.Name,
		Country:  prof.Country,
		Currency: prof.Currency,
		Exchange: prof.Exchange,
		Industry: prof.Industry,
		IPO:      prof.IPO,
		WebURL:   prof.WebURL,
	}, nil
}

// Valuation implements market.FundamentalsSource. MarketCapMillions is in
// millions of USD and DividendYield is already a percentage.
func (p *Provider) Valuation(ctx context.Context, sym market.Symbol) (*market.Valuation, error) {
	m, err := p.metrics(ctx, sym)
	if err != nil {
		return nil, err
	}
	return &market.Valuation{
		PE:                m.PE(),
		PB:                m.PBAnnual,
		DividendYield:     m.DividendYield,
		MarketCapMillions: m.MarketCapitalization,
		Beta:              m.Beta,
	}, nil
}

// Financials implements market.FundamentalsSource. Profit growth is taken
// from trailing EPS growth and FCF from trailing cash flow per share.
func (p *Provider) Financials(ctx context.Context, sym market.Symbol) (*market.Financials, error) {
	m, err := p.metrics(ctx, sym)
	if err != nil {
		return nil, err
	}
	return &market.Financials{
		ROE:           m.ROETTM,
		ROA:           m.ROATTM,
		RevenueGrowth: m.RevenueGrowthTTMYoy,
		ProfitGrowth:  m.EPSGrowthTTMYoy,
		EPS:           m.EPSTTM,
		BPS:           m.BookValuePerShare,
		FCF:           m.CashFlowPerShareTTM,
		DebtRatio:     m.DebtRatio(),
		CurrentRatio:  m.CurrentRatioAnnual,
	}, nil
}

func (p *Provider) metrics(ctx context.Context, sym market.Symbol) (*Metrics, error) {
	ticker, err := p.ticker(sym)
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	m, err := p.client.Metrics(ctx, ticker)
	if err != nil {
		logx.WithContext(ctx).Errorf("finnhub: metrics provider=%s ticker=%s err=%v", p.name, ticker, err)
		return nil, err
	}
	return m, nil
}
