// Package valuation estimates intrinsic value and safety margin for a holding
// from its price and a handful of fundamentals, and compares successive
// estimates.
package valuation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Recommendation is the advice band derived from the safety margin.
type Recommendation string

const (
	StrongBuy Recommendation = "强烈买入"
	Buy       Recommendation = "买入"
	Hold      Recommendation = "持有"
	Watch     Recommendation = "观望"
	Sell      Recommendation = "卖出"
)

// Weights of the blended intrinsic value.
const (
	earningsWeight = 0.7
	priceWeight    = 0.3
	floorRatio     = 0.5
)

// Financials are the inputs of the valuation models. Percentages are expressed
// as percent numbers (12 means 12%); EPS, BPS and FCF are per share.
// Analyze reads PE and the growth figures; AnalyzeComposite reads the rest.
type Financials struct {
	PE            float64 `json:"pe"`
	PB            float64 `json:"pb,omitempty"`
	ROE           float64 `json:"roe"`
	ROA           float64 `json:"roa,omitempty"`
	RevenueGrowth float64 `json:"revenue_growth"`
	ProfitGrowth  float64 `json:"profit_growth"`
	EPS           float64 `json:"eps,omitempty"`
	BPS           float64 `json:"bps,omitempty"`
	FCF           float64 `json:"fcf,omitempty"`
	DebtRatio     float64 `json:"debt_ratio,omitempty"`
	CurrentRatio  float64 `json:"current_ratio,omitempty"`
	DividendYield float64 `json:"dividend_yield,omitempty"`
	Source        string  `json:"source,omitempty"`
}

// DefaultFinancials is used when neither a data provider nor an estimate is
// available.
func DefaultFinancials() Financials {
	return Financials{ROE: 12, RevenueGrowth: 10, ProfitGrowth: 10, Source: "default"}
}

// Result is a single valuation of one instrument.
type Result struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	Price          float64        `json:"price"`
	EPS            float64        `json:"eps"`
	FairPE         float64        `json:"fair_pe"`
	Intrinsic      float64        `json:"intrinsic"`
	Margin         float64        `json:"margin"`
	Recommendation Recommendation `json:"recommendation"`
	Financials     Financials     `json:"financials"`
	AnalyzedAt     time.Time      `json:"analyzed_at"`
}

// Analyze values an instrument at price. A non-positive PE yields zero EPS so
// the intrinsic value falls back to the price floor.
func Analyze(code, name string, price float64, fin Financials, now time.Time) Result {
	var eps float64
	if fin.PE > 0 && price > 0 {
		eps = price / fin.PE
	}
	fairPE := FairPE(fin.ProfitGrowth)
	intrinsic := math.Max(eps*fairPE*earningsWeight+price*priceWeight, price*floorRatio)

	var margin float64
	if intrinsic > 0 {
		margin = (intrinsic - price) / intrinsic
	}
	return Result{
		Code:           code,
		Name:           name,
		Price:          price,
		EPS:            eps,
		FairPE:         fairPE,
		Intrinsic:      intrinsic,
		Margin:         margin,
		Recommendation: Recommend(margin),
		Financials:     fin,
		AnalyzedAt:     now,
	}
}

// FairPE maps profit growth (percent) to the multiple the model pays for it.
func FairPE(profitGrowth float64) float64 {
	g := profitGrowth / 100
	switch {
	case g > 0.20:
		return 25
	case g > 0.15:
		return 20
	case g > 0.10:
		return 15
	default:
		return 12
	}
}

// Recommend maps a safety margin onto an advice band.
func Recommend(margin float64) Recommendation {
	switch {
	case margin > 0.5:
		return StrongBuy
	case margin > 0.3:
		return Buy
	case margin > 0.1:
		return Hold
	case margin > -0.1:
		return Watch
	default:
		return Sell
	}
}

// Snapshot is the part of a Result remembered between tracker runs.
type Snapshot struct {
	Price          float64        `json:"price"`
	Intrinsic      float64        `json:"intrinsic"`
	Margin         float64        `json:"margin"`
	Recommendation Recommendation `json:"recommendation"`
	At             time.Time      `json:"at"`
}

// Snapshot extracts the comparable state of r.
func (r Result) Snapshot() Snapshot {
	return Snapshot{
		Price:          r.Price,
		Intrinsic:      r.Intrinsic,
		Margin:         r.Margin,
		Recommendation: r.Recommendation,
		At:             r.AnalyzedAt,
	}
}

// Change describes how a valuation moved relative to a previous snapshot.
// PriceChange and IntrinsicChange are relative, MarginChange is absolute.
type Change struct {
	PriceChange       float64  `json:"price_change"`
	IntrinsicChange   float64  `json:"intrinsic_change"`
	MarginChange      float64  `json:"margin_change"`
	Days              int      `json:"days"`
	PriceDriven       bool     `json:"price_driven"`
	FundamentalDriven bool     `json:"fundamental_driven"`
	BandChanged       bool     `json:"band_changed"`
	Findings          []string `json:"findings"`
	Advice            string   `json:"advice"`
}

// Compare contrasts cur with the previous snapshot.
func Compare(cur Result, prev Snapshot) Change {
	c := Change{
		PriceChange:     relative(cur.Price, prev.Price),
		IntrinsicChange: relative(cur.Intrinsic, prev.Intrinsic),
		MarginChange:    cur.Margin - prev.Margin,
		BandChanged:     prev.Recommendation != "" && prev.Recommendation != cur.Recommendation,
	}
	if !prev.At.IsZero() && cur.AnalyzedAt.After(prev.At) {
		c.Days = int(cur.AnalyzedAt.Sub(prev.At).Hours() / 24)
	}
	c.PriceDriven = math.Abs(c.PriceChange) > math.Abs(c.IntrinsicChange)*2
	c.FundamentalDriven = math.Abs(c.IntrinsicChange) > 0.05

	if math.Abs(c.PriceChange) > 0.1 {
		c.Findings = append(c.Findings, fmt.Sprintf("股价大幅%s %.1f%%", direction(c.PriceChange, "上涨", "下跌"), math.Abs(c.PriceChange)*100))
	}
	if c.FundamentalDriven {
		c.Findings = append(c.Findings, fmt.Sprintf("内在价值%s %.1f%%", direction(c.IntrinsicChange, "提升", "下降"), math.Abs(c.IntrinsicChange)*100))
	}
	switch {
	case c.MarginChange > 0.1:
		c.Findings = append(c.Findings, fmt.Sprintf("安全边际扩大 %.1f%%", c.MarginChange*100))
	case c.MarginChange < -0.1:
		c.Findings = append(c.Findings, fmt.Sprintf("安全边际收窄 %.1f%%", -c.MarginChange*100))
	}

	rec := string(cur.Recommendation)
	c.Advice = rec
	switch {
	case c.MarginChange > 0.15:
		if strings.Contains(rec, string(Buy)) {
			c.Advice = rec + "（安全边际改善，可加仓）"
		} else {
			c.Advice = "关注（安全边际改善）"
		}
	case c.MarginChange < -0.15:
		if strings.Contains(rec, string(Sell)) {
			c.Advice = rec + "（安全边际收窄，考虑止损）"
		} else {
			c.Advice = "谨慎持有（安全边际收窄）"
		}
	}
	return c
}

// Conclusion joins the findings, or reports a stable valuation.
func (c Change) Conclusion() string {
	if len(c.Findings) == 0 {
		return "估值基本稳定"
	}
	return strings.Join(c.Findings, "，")
}

// Thresholds decide when a change is worth a notification.
type Thresholds struct {
	Margin float64
	Price  float64
}

// DefaultThresholds notify on a 10 point margin move or a 10% price move.
func DefaultThresholds() Thresholds {
	return Thresholds{Margin: 0.10, Price: 0.10}
}

// Noteworthy reports whether c crosses any threshold or moved the advice band.
func (c Change) Noteworthy(th Thresholds) bool {
	return math.Abs(c.MarginChange) >= th.Margin ||
		math.Abs(c.PriceChange) >= th.Price ||
		c.BandChanged
}

func relative(cur, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (cur - prev) / prev
}

func direction(v float64, up, down string) string {
	if v > 0 {
		return up
	}
	return down
}
