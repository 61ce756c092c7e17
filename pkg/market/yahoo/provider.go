package yahoo

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/pkg/market"
)

const providerType = "yahoo"

// Provider serves index levels and, as a fallback quote source, equity
// quotes.
type Provider struct {
	name    string
	client  *Client
	timeout time.Duration
}

var (
	_ market.IndexSource = (*Provider)(nil)
	_ market.QuoteSource = (*Provider)(nil)
)

// NewProvider wraps client under the given provider name.
func NewProvider(name string, client *Client, timeout time.Duration) *Provider {
	if client == nil {
		client = NewClient()
	}
	return &Provider{name: name, client: client, timeout: timeout}
}

func init() {
	market.RegisterProvider(providerType, func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		client := NewClient(
			WithBaseURL(cfg.BaseURL),
			WithTimeout(cfg.Timeout),
			WithMaxRetries(cfg.MaxRetries),
		)
		return NewProvider(name, client, cfg.Timeout), nil
	})
}

// Name implements market.Provider.
func (p *Provider) Name() string { return p.name }

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return ctx, func() {}
}

// Index implements market.IndexSource. code is a Yahoo index symbol such as
// ^GSPC or 000001.SS.
func (p *Provider) Index(ctx context.Context, code string) (*market.IndexQuote, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	meta, err := p.client.Chart(ctx, code)
	if err != nil {
		logx.WithContext(ctx).Errorf("yahoo: index provider=%s code=%s err=%v", p.name, code, err)
		return nil, err
	}
	prev := meta.PrevClose()
	return &market.IndexQuote{
		Code:          code,
		Name:          meta.Name(),
		Currency:      meta.Currency,
		Price:         meta.RegularMarketPrice,
		PrevClose:     prev,
		ChangePercent: market.ChangePercent(meta.RegularMarketPrice, prev),
		UpdatedAt:     meta.UpdatedAt(),
	}, nil
}

// Quote implements market.QuoteSource. Turnover, PE and market cap are not
// part of the chart summary and stay zero.
func (p *Provider) Quote(ctx context.Context, sym market.Symbol) (*market.Quote, error) {
	ticker, err := Ticker(sym)
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	meta, err := p.client.Chart(ctx, ticker)
	if err != nil {
		logx.WithContext(ctx).Errorf("yahoo: quote provider=%s code=%s err=%v", p.name, sym.Code, err)
		return nil, err
	}
	prev := meta.PrevClose()
	if sym.Name == "" {
		sym.Name = meta.Name()
	}
	return &market.Quote{
		Symbol:        sym,
		Name:          meta.Name(),
		Currency:      meta.Currency,
		Price:         meta.RegularMarketPrice,
		PrevClose:     prev,
		High:          meta.DayHigh,
		Low:           meta.DayLow,
		Change:        meta.RegularMarketPrice - prev,
		ChangePercent: market.ChangePercent(meta.RegularMarketPrice, prev),
		Volume:        meta.Volume,
		UpdatedAt:     meta.UpdatedAt(),
	}, nil
}
