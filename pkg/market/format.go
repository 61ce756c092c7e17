package market

import (
	"fmt"
	"math"
)

// Magnitude labels for market capitalisation.
const (
	Trillion = "T"
	Billion  = "B"
	Million  = "M"
)

// MarketCap is a display-ready market capitalisation.
type MarketCap struct {
	Value float64
	Unit  string
}

func (m MarketCap) String() string {
	return fmt.Sprintf("$%.2f%s", m.Value, m.Unit)
}

// ScaleMarketCap converts an upstream figure in millions of USD. The label is
// chosen on the value in billions: >= 1000 is trillions, >= 1 billions,
// anything smaller millions.
func ScaleMarketCap(millionsUSD float64) MarketCap {
	billions := millionsUSD / 1000
	switch {
	case billions >= 1000:
		return MarketCap{Value: billions / 1000, Unit: Trillion}
	case billions >= 1:
		return MarketCap{Value: billions, Unit: Billion}
	default:
		return MarketCap{Value: billions * 1000, Unit: Million}
	}
}

// Trend classifies a daily percent move.
type Trend struct {
	Label      string
	Emoji      string
	Suggestion string
}

// ClassifyTrend maps a change percent onto a trend band and a one-line hint.
func ClassifyTrend(changePercent float64) Trend {
	t := Trend{Label: "平", Emoji: "⚪"}
	switch {
	case changePercent >= 5:
		t.Label, t.Emoji = "大涨", "🚀"
	case changePercent >= 2:
		t.Label, t.Emoji = "上涨", "📈"
	case changePercent > 0:
		t.Label, t.Emoji = "小涨", "🟢"
	case changePercent <= -5:
		t.Label, t.Emoji = "大跌", "📉"
	case changePercent <= -2:
		t.Label, t.Emoji = "下跌", "🔴"
	case changePercent < 0:
		t.Label, t.Emoji = "小跌", "🔴"
	}

	switch {
	case changePercent > 5:
		t.Suggestion = "涨幅较大，注意风险"
	case changePercent > 2:
		t.Suggestion = "表现强势"
	case changePercent < -5:
		t.Suggestion = "跌幅较大，谨慎操作"
	case changePercent < -2:
		t.Suggestion = "表现弱势"
	default:
		t.Suggestion = "波动不大，观望为主"
	}
	return t
}

// FormatVolume renders a lot count, switching to 万手 above ten thousand.
func FormatVolume(lots float64) string {
	if lots >= 10000 {
		return fmt.Sprintf("%.2f万手", lots/10000)
	}
	return fmt.Sprintf("%.0f手", lots)
}

// FormatYiCap renders a local-currency capitalisation given in 亿.
func FormatYiCap(yi float64) string {
	if yi >= 10000 {
		return fmt.Sprintf("%.2f万亿", yi/10000)
	}
	return fmt.Sprintf("%.2f亿", yi)
}

// SignedPercent renders a percent number with an explicit sign.
func SignedPercent(v float64) string {
	if math.Abs(v) < 0.005 {
		v = 0
	}
	return fmt.Sprintf("%+.2f%%", v)
}
