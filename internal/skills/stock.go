package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

type stockArgs struct {
	Symbol string `arg:"symbol"`
	Market string `arg:"market,default=AUTO,options=AUTO|US|HK|CN"`
}

// AnalyzeStock reports a realtime quote plus, where the fundamentals provider
// covers the market, valuation ratios and the company profile.
type AnalyzeStock struct{ deps Deps }

func (s *AnalyzeStock) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.AnalyzeStock,
		Description: "查询个股实时行情、估值指标与公司概况，支持 A 股、港股、美股",
		Examples:    []string{"分析一下茅台", "腾讯股价多少", "AAPL 怎么样"},
		Params: []skill.Param{
			{Name: "symbol", Type: skill.TypeString, Required: true, Description: "股票名称或代码，如 茅台、600519、hk00700、AAPL"},
			{Name: "market", Type: skill.TypeString, Enum: []string{"AUTO", "US", "HK", "CN"}, Default: "AUTO", Description: "市场，默认自动识别"},
		},
	}
}

func (s *AnalyzeStock) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	var args stockArgs
	if err := skill.Bind(upper(inv.Args, "market"), &args); err != nil {
		return skill.Fail("❓ 请提供股票名称或代码，例如: /stock 茅台", err)
	}
	var hint markethours.Market
	if args.Market != "AUTO" {
		hint = markethours.Market(args.Market)
	}
	src := s.deps.Sources
	sym, err := src.Symbols.Resolve(args.Symbol, hint)
	if err != nil {
		return skill.Fail(fmt.Sprintf("❓ 未找到股票: %s", args.Symbol), err)
	}

	quote, err := cache.GetOrFetch(ctx, s.deps.Cache, cache.KindQuote, sym.Market, sym.Code, func(ctx context.Context) (*market.Quote, error) {
		return src.Quotes.Quote(ctx, sym)
	})
	if err != nil {
		if errors.Is(err, market.ErrSymbolNotFound) {
			return skill.Fail(fmt.Sprintf("❓ 未找到股票: %s", args.Symbol), err)
		}
		return skill.Fail(fmt.Sprintf("❌ 获取 %s 行情失败，请稍后再试", args.Symbol), err)
	}

	report := stockReport{quote: quote}
	if src.Fundamentals != nil {
		report.valuation, _ = optional(ctx, "valuation", sym, func() (*market.Valuation, error) {
			return cache.GetOrFetch(ctx, s.deps.Cache, cache.KindValuation, sym.Market, sym.Code, func(ctx context.Context) (*market.Valuation, error) {
				return src.Fundamentals.Valuation(ctx, sym)
			})
		})
		report.profile, _ = optional(ctx, "profile", sym, func() (*market.Profile, error) {
			return cache.GetOrFetch(ctx, s.deps.Cache, cache.KindProfile, sym.Market, sym.Code, func(ctx context.Context) (*market.Profile, error) {
				return src.Fundamentals.Profile(ctx, sym)
			})
		})
	}
	return skill.Result{Success: true, Message: report.text(), Card: report.card(), Data: quote}
}

// optional runs an enrichment fetch; failures drop the section.
func optional[T any](ctx context.Context, section string, sym market.Symbol, fetch func() (*T, error)) (*T, error) {
	v, err := fetch()
	if err != nil {
		if !errors.Is(err, market.ErrUnsupported) {
			logx.WithContext(ctx).Infof("skills: %s for %s unavailable: %v", section, sym.Code, err)
		}
		return nil, err
	}
	return v, nil
}

type stockReport struct {
	quote     *market.Quote
	valuation *market.Valuation
	profile   *market.Profile
}

func (r stockReport) title() string {
	q := r.quote
	name := q.Symbol.Name
	if name == "" {
		name = q.Name
	}
	return fmt.Sprintf("%s (%s)", name, q.Symbol.Code)
}

func (r stockReport) sections() []string {
	q := r.quote
	trend := market.ClassifyTrend(q.ChangePercent)
	var out []string

	out = append(out, fmt.Sprintf("💰 **现价**: %.2f %s  %s %s (%s)", q.Price, q.Currency, trend.Emoji, market.SignedPercent(q.ChangePercent), trend.Label))

	var day []string
	if q.Open > 0 {
		day = append(day, fmt.Sprintf("今开 %.2f", q.Open))
	}
	if q.High > 0 {
		day = append(day, fmt.Sprintf("最高 %.2f", q.High))
	}
	if q.Low > 0 {
		day = append(day, fmt.Sprintf("最低 %.2f", q.Low))
	}
	if q.PrevClose > 0 {
		day = append(day, fmt.Sprintf("昨收 %.2f", q.PrevClose))
	}
	if len(day) > 0 {
		out = append(out, "📊 "+strings.Join(day, " | "))
	}

	var trade []string
	if q.Volume > 0 {
		trade = append(trade, "成交量 "+market.FormatVolume(q.Volume))
	}
	if q.TurnoverRate > 0 {
		trade = append(trade, fmt.Sprintf("换手率 %.2f%%", q.TurnoverRate))
	}
	if q.PE > 0 {
		trade = append(trade, fmt.Sprintf("市盈率 %.2f", q.PE))
	}
	if q.MarketCap > 0 {
		trade = append(trade, "总市值 "+market.FormatYiCap(q.MarketCap))
	}
	if len(trade) > 0 {
		out = append(out, "📦 "+strings.Join(trade, " | "))
	}

	if v := r.valuation; v != nil {
		var parts []string
		if v.PE > 0 {
			parts = append(parts, fmt.Sprintf("PE %.2f", v.PE))
		}
		if v.PB > 0 {
			parts = append(parts, fmt.Sprintf("PB %.2f", v.PB))
		}
		if v.DividendYield > 0 {
			parts = append(parts, fmt.Sprintf("股息率 %.2f%%", v.DividendYield))
		}
		if v.MarketCapMillions > 0 {
			parts = append(parts, "市值 "+market.ScaleMarketCap(v.MarketCapMillions).String())
		}
		if v.Beta != 0 {
			parts = append(parts, fmt.Sprintf("Beta %.2f", v.Beta))
		}
		if len(parts) > 0 {
			out = append(out, "💹 **估值**: "+strings.Join(parts, " | "))
		}
	}

	if p := r.profile; p != nil {
		var parts []string
		for _, v := range []string{p.Industry, p.Exchange, p.Country} {
			if v != "" {
				parts = append(parts, v)
			}
		}
		if p.IPO != "" {
			parts = append(parts, "上市 "+p.IPO)
		}
		if len(parts) > 0 {
			out = append(out, "🏢 **公司**: "+strings.Join(parts, " | "))
		}
	}

	out = append(out, "💡 "+trend.Suggestion)
	return out
}

func (r stockReport) text() string {
	lines := append([]string{"📈 " + r.title()}, r.sections()...)
	return strings.ReplaceAll(strings.Join(lines, "\n"), "**", "")
}

func (r stockReport) card() *feishu.Card {
	template := "grey"
	switch {
	case r.quote.ChangePercent > 0:
		template = "red"
	case r.quote.ChangePercent < 0:
		template = "green"
	}
	card := feishu.NewCard("📈 "+r.title(), template)
	card.Markdown(strings.Join(r.sections(), "\n"))
	if !r.quote.UpdatedAt.IsZero() {
		card.Divider().Markdown("⏰ " + r.quote.UpdatedAt.In(markethours.Location()).Format("2006-01-02 15:04:05"))
	}
	return card
}
