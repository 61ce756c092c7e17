package tracker

import (
	"fmt"
	"strings"

	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/markethours"
)

const timeLayout = "2006-01-02 15:04"

// RenderCard renders a report as an interactive card. notify switches the
// title between a scheduled alert and an on-demand check.
func RenderCard(r Report, notify bool) *feishu.Card {
	title := "📊 持仓估值报告"
	if notify {
		title = "🔔 持仓估值提醒"
	}
	card := feishu.NewCard(title, "blue")
	card.Markdown(fmt.Sprintf("**市场**: %s", marketLabels(r.Markets)))
	for _, it := range r.Items {
		card.Divider().Markdown(renderItem(it))
	}
	if len(r.Failed) > 0 {
		card.Divider().Markdown("⚠️ 未能分析: " + strings.Join(r.Failed, ", "))
	}
	card.Markdown(fmt.Sprintf("⏰ %s", r.At.In(markethours.Location()).Format(timeLayout)))
	return card
}

// RenderText renders a report as plain text.
func RenderText(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 持仓估值报告 (%s)\n", marketLabels(r.Markets))
	for i, it := range r.Items {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, strings.ReplaceAll(renderItem(it), "**", ""))
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "\n⚠️ 未能分析: %s\n", strings.Join(r.Failed, ", "))
	}
	fmt.Fprintf(&b, "\n⏰ %s", r.At.In(markethours.Location()).Format(timeLayout))
	return b.String()
}

func renderItem(it Item) string {
	p, res := it.Position, it.Result
	var b strings.Builder
	prefix := "【更新】"
	if it.First {
		prefix = "【首次】"
	}
	fmt.Fprintf(&b, "%s**%s** (%s)\n", prefix, res.Name, res.Code)
	fmt.Fprintf(&b, "• 持仓: %s股 | 成本: %s\n", p.Shares.String(), p.AvgCost.StringFixed(2))
	cost := p.CostBasis()
	if cost.IsPositive() {
		pnl := p.UnrealizedPnL().Div(cost).InexactFloat64() * 100
		fmt.Fprintf(&b, "• 现价: %.2f | 盈亏: %+.2f%%\n", res.Price, pnl)
	} else {
		fmt.Fprintf(&b, "• 现价: %.2f\n", res.Price)
	}
	fmt.Fprintf(&b, "%s 内在价值: %.2f | 安全边际: %+.1f%%\n", marginEmoji(res.Margin), res.Intrinsic, res.Margin*100)
	fmt.Fprintf(&b, "• 投资建议: %s\n", res.Recommendation)
	fmt.Fprintf(&b, "• ROE: %.1f%% | 利润增长: %.1f%% (%s)", res.Financials.ROE, res.Financials.ProfitGrowth, res.Financials.Source)
	if c := it.Composite; c.Valid() {
		fmt.Fprintf(&b, "\n• 综合估值: %.2f (DCF %.2f | PE %.2f | PB %.2f) | 安全边际: %+.1f%%",
			c.Intrinsic, c.DCF, c.PE, c.PB, c.Margin*100)
		fmt.Fprintf(&b, "\n• 质量评分: %d (%s) | 置信度: %s", c.Quality, c.QualityRating, c.Confidence)
	}
	if !it.First {
		c := it.Change
		fmt.Fprintf(&b, "\n• 变化 (距上次 %d 天): 价格 %+.2f%% | 内在价值 %+.2f%% | 安全边际 %+.2f%%",
			c.Days, c.PriceChange*100, c.IntrinsicChange*100, c.MarginChange*100)
		fmt.Fprintf(&b, "\n• 结论: %s", c.Conclusion())
		fmt.Fprintf(&b, "\n• 操作建议: %s", c.Advice)
		switch {
		case c.PriceDriven:
			b.WriteString("\n• 原因: 主要由价格波动驱动")
		case c.FundamentalDriven:
			b.WriteString("\n• 原因: 基本面发生变化")
		}
	}
	return b.String()
}

func marginEmoji(margin float64) string {
	switch {
	case margin > 0.3:
		return "🟢"
	case margin > 0:
		return "🟡"
	default:
		return "🔴"
	}
}

func marketLabels(markets []markethours.Market) string {
	if len(markets) == 0 {
		return "-"
	}
	labels := make([]string, len(markets))
	for i, m := range markets {
		labels[i] = m.Label()
	}
	return strings.Join(labels, ", ")
}
