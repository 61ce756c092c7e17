package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

type index struct {
	Name string
	Code string
}

// Index baskets per market, in Yahoo symbols.
var baskets = map[markethours.Market][]index{
	markethours.US: {{"标普500", "^GSPC"}, {"纳斯达克", "^IXIC"}, {"道琼斯", "^DJI"}},
	markethours.HK: {{"恒生指数", "^HSI"}, {"恒生科技", "HSTECH.HK"}},
	markethours.CN: {{"上证指数", "000001.SS"}, {"深证成指", "399001.SZ"}},
}

type marketArgs struct {
	Market string `arg:"market,default=US,options=US|HK|CN|ALL"`
}

// IndexLine is one row of a market overview. Err is set when the index
// could not be fetched.
type IndexLine struct {
	Market markethours.Market
	Name   string
	Quote  *market.IndexQuote
	Err    error
}

// QueryMarket reports the main indexes of one market or all of them.
type QueryMarket struct{ deps Deps }

func (s *QueryMarket) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.QueryMarket,
		Description: "查询美股、港股、A 股主要指数的最新行情",
		Examples:    []string{"今天美股怎么样", "港股行情", "看看大盘"},
		Params: []skill.Param{
			{Name: "market", Type: skill.TypeString, Enum: []string{"US", "HK", "CN", "ALL"}, Default: "US", Description: "市场"},
		},
	}
}

func (s *QueryMarket) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	var args marketArgs
	if err := skill.Bind(upper(inv.Args, "market"), &args); err != nil {
		return skill.Fail("❓ 支持的市场: US、HK、CN、ALL", err)
	}
	markets := markethours.All()
	if args.Market != "ALL" {
		markets = []markethours.Market{markethours.Market(args.Market)}
	}

	var lines []IndexLine
	ok := 0
	for _, m := range markets {
		for _, idx := range baskets[m] {
			code := idx.Code
			q, err := cache.GetOrFetch(ctx, s.deps.Cache, cache.KindIndex, m, code, func(ctx context.Context) (*market.IndexQuote, error) {
				return s.deps.Sources.Indexes.Index(ctx, code)
			})
			if err != nil {
				logx.WithContext(ctx).Errorf("skills: index %s: %v", code, err)
			} else {
				ok++
			}
			lines = append(lines, IndexLine{Market: m, Name: idx.Name, Quote: q, Err: err})
		}
	}
	if ok == 0 {
		return skill.Fail("❌ 获取行情失败，请稍后再试", fmt.Errorf("all %d indexes failed", len(lines)))
	}

	now := s.deps.now().In(markethours.Location())
	title := fmt.Sprintf("%s行情 %s", marketTitle(args.Market), now.Format("01-02 15:04"))
	text := "📊 " + title + "\n\n" + renderIndexes(lines, false)

	card := feishu.NewCard("📊 "+title, "blue")
	for i, m := range markets {
		if i > 0 {
			card.Divider()
		}
		var group []IndexLine
		for _, l := range lines {
			if l.Market == m {
				group = append(group, l)
			}
		}
		status := "🔴 休市"
		if markethours.IsOpen(m, now) {
			status = "🟢 交易中"
		}
		card.Markdown(fmt.Sprintf("**%s** %s\n%s", marketFlags[string(m)], status, renderIndexes(group, true)))
	}
	return skill.Result{Success: true, Message: text, Card: card, Data: lines}
}

func marketTitle(tag string) string {
	if tag == "ALL" {
		return "全球市场"
	}
	return marketNames[tag]
}

func renderIndexes(lines []IndexLine, bold bool) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		name := l.Name
		if bold {
			name = "**" + name + "**"
		}
		if l.Err != nil {
			out = append(out, fmt.Sprintf("⚪ %s: 暂不可用", name))
			continue
		}
		trend := market.ClassifyTrend(l.Quote.ChangePercent)
		out = append(out, fmt.Sprintf("%s %s: %.2f (%s)", trend.Emoji, name, l.Quote.Price, market.SignedPercent(l.Quote.ChangePercent)))
	}
	return strings.Join(out, "\n")
}
