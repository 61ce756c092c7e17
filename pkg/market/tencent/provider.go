package tencent

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/pkg/market"
)

const providerType = "tencent"

// Provider exposes the client as a market.QuoteSource.
type Provider struct {
	name    string
	client  *Client
	timeout time.Duration
}

var _ market.QuoteSource = (*Provider)(nil)

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

// Quote implements market.QuoteSource.
func (p *Provider) Quote(ctx context.Context, sym market.Symbol) (*market.Quote, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	q, err := p.client.Quote(ctx, sym)
	if err != nil {
		logx.WithContext(ctx).Errorf("tencent: quote provider=%s code=%s err=%v", p.name, sym.Code, err)
		return nil, err
	}
	return q, nil
}
