package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/portfolio"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

type portfolioArgs struct {
	Action string `arg:"action,default=query,options=query|buy|sell|reset"`
	Symbol string `arg:"symbol,optional"`
	Market string `arg:"market,default=AUTO,options=AUTO|US|HK|CN"`
	Shares string `arg:"shares,optional"`
	Price  string `arg:"price,optional"`
}

const tradeExample = "例如: 买入茅台 100股 价格1500"

// ManagePortfolio records trades and reports holdings.
type ManagePortfolio struct{ deps Deps }

func (s *ManagePortfolio) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.ManagePortfolio,
		Description: "记录买入卖出交易、查询或清空持仓，自动计算加权平均成本",
		Examples:    []string{"买入茅台 100股 价格1500", "卖出腾讯 50股 400元", "查看我的持仓"},
		Params: []skill.Param{
			{Name: "action", Type: skill.TypeString, Enum: []string{"query", "buy", "sell", "reset"}, Default: "query", Description: "操作"},
			{Name: "symbol", Type: skill.TypeString, Description: "股票名称或代码，买卖时必填"},
			{Name: "market", Type: skill.TypeString, Enum: []string{"AUTO", "US", "HK", "CN"}, Default: "AUTO", Description: "市场"},
			{Name: "shares", Type: skill.TypeNumber, Description: "股数，买卖时必填"},
			{Name: "price", Type: skill.TypeNumber, Description: "成交价格，买卖时必填"},
		},
	}
}

func (s *ManagePortfolio) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	args := upper(inv.Args, "market")
	if a, ok := args["action"]; ok {
		args["action"] = strings.ToLower(strings.TrimSpace(a))
	}
	var in portfolioArgs
	if err := skill.Bind(args, &in); err != nil {
		return skill.Fail("❓ 无法识别的持仓操作，"+tradeExample, err)
	}
	switch in.Action {
	case "buy", "sell":
		return s.trade(ctx, inv.UserID, in)
	case "reset":
		n, err := s.deps.Ledger.Reset(ctx, inv.UserID)
		if err != nil {
			return skill.Fail("❌ 清空持仓失败，请稍后再试", err)
		}
		return skill.OK(fmt.Sprintf("🗑️ 已清空 %d 个持仓", n))
	default:
		return s.query(ctx, inv.UserID)
	}
}

func (s *ManagePortfolio) trade(ctx context.Context, userID string, in portfolioArgs) skill.Result {
	if in.Symbol == "" {
		return skill.Failf("❓ 请提供股票名称或代码，%s", tradeExample)
	}
	shares, err := decimal.NewFromString(in.Shares)
	if err != nil {
		return skill.Fail("❓ 请提供有效的股数，"+tradeExample, err)
	}
	price, err := decimal.NewFromString(in.Price)
	if err != nil {
		return skill.Fail("❓ 请提供有效的价格，"+tradeExample, err)
	}
	var hint markethours.Market
	if in.Market != "AUTO" {
		hint = markethours.Market(in.Market)
	}
	sym, err := s.deps.Sources.Symbols.Resolve(in.Symbol, hint)
	if err != nil {
		return skill.Fail(fmt.Sprintf("❓ 未找到股票: %s", in.Symbol), err)
	}
	if sym.Name == "" {
		sym.Name = in.Symbol
	}

	if in.Action == "buy" {
		p, err := s.deps.Ledger.Buy(ctx, userID, sym, shares, price)
		if err != nil {
			return tradeFailure(err)
		}
		return skill.OK(fmt.Sprintf("✅ 已记录买入 %s (%s) %s股 @ %s\n当前持仓: %s股，平均成本 %s",
			sym.Name, sym.Code, shares.String(), price.String(), p.Shares.String(), p.AvgCost.StringFixed(2)))
	}

	p, err := s.deps.Ledger.Sell(ctx, userID, sym, shares, price)
	if err != nil {
		return tradeFailure(err)
	}
	msg := fmt.Sprintf("✅ 已记录卖出 %s (%s) %s股 @ %s", sym.Name, sym.Code, shares.String(), price.String())
	if p == nil {
		return skill.OK(msg + "\n已全部卖出")
	}
	return skill.OK(fmt.Sprintf("%s\n剩余持仓: %s股，平均成本 %s", msg, p.Shares.String(), p.AvgCost.StringFixed(2)))
}

func tradeFailure(err error) skill.Result {
	switch {
	case errors.Is(err, portfolio.ErrInsufficientShares):
		return skill.Fail("❌ 持仓不足，无法卖出", err)
	case errors.Is(err, portfolio.ErrInvalidTrade):
		return skill.Fail("❓ 股数和价格必须大于 0", err)
	default:
		return skill.Fail("❌ 记录交易失败，请稍后再试", err)
	}
}

func (s *ManagePortfolio) query(ctx context.Context, userID string) skill.Result {
	positions, err := s.deps.Ledger.Positions(ctx, userID)
	if err != nil {
		return skill.Fail("❌ 查询持仓失败，请稍后再试", err)
	}
	if len(positions) == 0 {
		return skill.OK("📭 暂无持仓\n\n" + tradeExample)
	}
	for i := range positions {
		s.refreshPrice(ctx, &positions[i])
	}

	var blocks []string
	for _, m := range markethours.All() {
		var group []portfolio.Position
		for _, p := range positions {
			if p.Symbol.Market == m {
				group = append(group, p)
			}
		}
		if len(group) > 0 {
			blocks = append(blocks, renderPositions(m, group))
		}
	}
	text := fmt.Sprintf("💼 我的持仓 (%d)\n\n%s", len(positions), strings.ReplaceAll(strings.Join(blocks, "\n\n"), "**", ""))
	card := feishu.NewCard(fmt.Sprintf("💼 我的持仓 (%d)", len(positions)), "indigo")
	for i, b := range blocks {
		if i > 0 {
			card.Divider()
		}
		card.Markdown(b)
	}
	return skill.Result{Success: true, Message: text, Card: card, Data: positions}
}

// refreshPrice updates LastPrice from the quote cache; failures keep the
// stored price.
func (s *ManagePortfolio) refreshPrice(ctx context.Context, p *portfolio.Position) {
	if s.deps.Sources == nil || s.deps.Cache == nil {
		return
	}
	sym := p.Symbol
	q, err := cache.GetOrFetch(ctx, s.deps.Cache, cache.KindQuote, sym.Market, sym.Code, func(ctx context.Context) (*market.Quote, error) {
		return s.deps.Sources.Quotes.Quote(ctx, sym)
	})
	if err != nil {
		logx.WithContext(ctx).Infof("skills: refresh price %s: %v", sym.Code, err)
		return
	}
	p.LastPrice = q.Price
	if err := s.deps.Ledger.UpdatePrice(ctx, p.UserID, sym.Code, q.Price); err != nil {
		logx.WithContext(ctx).Errorf("skills: store price %s: %v", sym.Code, err)
	}
}

func renderPositions(m markethours.Market, positions []portfolio.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", marketFlags[string(m)])
	cost, value := decimal.Zero, decimal.Zero
	priced := true
	for _, p := range positions {
		fmt.Fprintf(&b, "\n• **%s** (%s) %s股 | 成本 %s | 总成本 %s",
			p.Symbol.Name, p.Symbol.Code, p.Shares.String(), p.AvgCost.StringFixed(2), p.CostBasis().StringFixed(2))
		cost = cost.Add(p.CostBasis())
		if p.LastPrice <= 0 {
			priced = false
			continue
		}
		pnl := p.UnrealizedPnL()
		pct := pnl.Div(p.CostBasis()).Mul(decimal.NewFromInt(100)).InexactFloat64()
		emoji := "📈"
		if pnl.IsNegative() {
			emoji = "📉"
		}
		fmt.Fprintf(&b, "\n  现价 %.2f | %s 盈亏 %s (%s)", p.LastPrice, emoji, pnl.StringFixed(2), market.SignedPercent(pct))
		value = value.Add(p.MarketValue())
	}
	if priced && cost.IsPositive() {
		pnl := value.Sub(cost)
		pct := pnl.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
		fmt.Fprintf(&b, "\n合计: 成本 %s | 市值 %s | 盈亏 %s (%s)", cost.StringFixed(2), value.StringFixed(2), pnl.StringFixed(2), market.SignedPercent(pct))
	}
	return b.String()
}
