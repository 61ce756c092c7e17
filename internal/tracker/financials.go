package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/cache"
	"feishu-assistant/pkg/llm"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/valuation"
)

const (
	sourceProvider = "provider"
	sourceEstimate = "llm"
)

type estimate struct {
	ROE           float64 `json:"roe"`
	ROA           float64 `json:"roa"`
	RevenueGrowth float64 `json:"revenue_growth"`
	ProfitGrowth  float64 `json:"profit_growth"`
	EPS           float64 `json:"eps"`
	BPS           float64 `json:"bps"`
	FCF           float64 `json:"fcf"`
	DebtRatio     float64 `json:"debt_ratio"`
	CurrentRatio  float64 `json:"current_ratio"`
	DividendYield float64 `json:"dividend_yield"`
}

const estimatePrompt = `估算%s(%s)的以下财务指标，百分比用数字表示(12 表示 12%%)，每股数据用交易币种。
只返回JSON: {"roe": 净资产收益率, "roa": 总资产收益率, "revenue_growth": 营收增长率, "profit_growth": 净利润增长率, "eps": 每股收益, "bps": 每股净资产, "fcf": 每股自由现金流, "debt_ratio": 资产负债率, "current_ratio": 流动比率, "dividend_yield": 股息率}`

// financials resolves the valuation inputs: PE from the quote (or the
// fundamentals provider), growth and balance-sheet figures from the provider,
// then an LLM estimate, then the defaults. Only the first two are cached. PB
// and dividend yield come from the provider's ratios when it has them.
func (t *Tracker) financials(ctx context.Context, sym market.Symbol, name string, quote *market.Quote) valuation.Financials {
	fin, err := cache.GetOrFetch(ctx, t.cache, cache.KindFinancials, sym.Market, sym.Code, func(ctx context.Context) (valuation.Financials, error) {
		if f, err := t.providerFinancials(ctx, sym); err == nil {
			return f, nil
		} else if !errors.Is(err, market.ErrUnsupported) {
			logx.WithContext(ctx).Infof("tracker: provider financials %s: %v", sym.Code, err)
		}
		return t.estimate(ctx, sym, name)
	})
	if err != nil {
		logx.WithContext(ctx).Infof("tracker: using default financials for %s: %v", sym.Code, err)
		fin = valuation.DefaultFinancials()
	}

	fin.PE = quote.PE
	if t.fundamentals != nil {
		v, err := cache.GetOrFetch(ctx, t.cache, cache.KindValuation, sym.Market, sym.Code, func(ctx context.Context) (*market.Valuation, error) {
			return t.fundamentals.Valuation(ctx, sym)
		})
		if err == nil {
			if fin.PE <= 0 {
				fin.PE = v.PE
			}
			if v.PB > 0 {
				fin.PB = v.PB
			}
			if v.DividendYield > 0 {
				fin.DividendYield = v.DividendYield
			}
		}
	}
	return fin
}

func (t *Tracker) providerFinancials(ctx context.Context, sym market.Symbol) (valuation.Financials, error) {
	if t.fundamentals == nil {
		return valuation.Financials{}, market.ErrUnsupported
	}
	f, err := t.fundamentals.Financials(ctx, sym)
	if err != nil {
		return valuation.Financials{}, err
	}
	return valuation.Financials{
		ROE:           f.ROE,
		ROA:           f.ROA,
		RevenueGrowth: f.RevenueGrowth,
		ProfitGrowth:  f.ProfitGrowth,
		EPS:           f.EPS,
		BPS:           f.BPS,
		FCF:           f.FCF,
		DebtRatio:     f.DebtRatio,
		CurrentRatio:  f.CurrentRatio,
		Source:        sourceProvider,
	}, nil
}

func (t *Tracker) estimate(ctx context.Context, sym market.Symbol, name string) (valuation.Financials, error) {
	if t.estimator == nil {
		return valuation.Financials{}, errors.New("no estimator configured")
	}
	prompt := fmt.Sprintf(estimatePrompt, name, sym.Code)
	var est estimate
	err := t.estimator.ChatStructured(ctx, &llm.ChatRequest{
		Model:       t.model,
		Messages:    []llm.Message{llm.User(prompt)},
		Temperature: llm.Float(0.3),
	}, &est)
	if err != nil {
		return valuation.Financials{}, fmt.Errorf("estimate: %w", err)
	}
	return valuation.Financials{
		ROE:           est.ROE,
		ROA:           est.ROA,
		RevenueGrowth: est.RevenueGrowth,
		ProfitGrowth:  est.ProfitGrowth,
		EPS:           est.EPS,
		BPS:           est.BPS,
		FCF:           est.FCF,
		DebtRatio:     est.DebtRatio,
		CurrentRatio:  est.CurrentRatio,
		DividendYield: est.DividendYield,
		Source:        sourceEstimate,
	}, nil
}
