package skills

import (
	"context"
	"fmt"
	"strings"

	"feishu-assistant/internal/portfolio"
	"feishu-assistant/internal/skill"
	"feishu-assistant/internal/tracker"
	"feishu-assistant/pkg/markethours"
)

type trackArgs struct {
	Action string `arg:"action,default=track,options=track|history"`
	Market string `arg:"market,default=ALL,options=US|HK|CN|ALL"`
}

const alertHistoryLimit = 10

// TrackPortfolio runs the tracker valuation for the requesting user on
// demand, or lists the valuations the scheduled tracker notified. It does not
// store snapshots.
type TrackPortfolio struct{ deps Deps }

func (s *TrackPortfolio) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.TrackPortfolio,
		Description: "对我的持仓做价值投资分析：内在价值、安全边际与操作建议",
		Examples:    []string{"分析一下我的持仓估值", "跟踪港股持仓", "查看估值提醒历史"},
		Params: []skill.Param{
			{Name: "action", Type: skill.TypeString, Enum: []string{"track", "history"}, Default: "track", Description: "track 跟踪分析，history 查看提醒历史"},
			{Name: "market", Type: skill.TypeString, Enum: []string{"US", "HK", "CN", "ALL"}, Default: "ALL", Description: "市场"},
		},
	}
}

func (s *TrackPortfolio) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	in := upper(inv.Args, "market")
	if a, ok := in["action"]; ok {
		in["action"] = strings.ToLower(strings.TrimSpace(a))
	}
	var args trackArgs
	if err := skill.Bind(in, &args); err != nil {
		return skill.Fail("❓ 支持的操作: track、history；支持的市场: US、HK、CN、ALL", err)
	}
	if args.Action == "history" {
		return s.history(ctx, inv.UserID)
	}
	opts := tracker.Options{Mode: tracker.ModeAll, UserID: inv.UserID}
	if args.Market != "ALL" {
		opts.Mode = tracker.ModeMarket
		opts.Market = markethours.Market(args.Market)
	}
	reports, err := s.deps.Tracker.Evaluate(ctx, opts)
	if err != nil {
		return skill.Fail("❌ 持仓分析失败，请稍后再试", err)
	}
	if len(reports) == 0 {
		return skill.OK("📭 暂无可分析的持仓")
	}
	report := reports[0]
	if len(report.Items) == 0 {
		return skill.Fail("❌ 持仓分析失败，请稍后再试", fmt.Errorf("no position of %s could be evaluated", inv.UserID))
	}
	return skill.Result{
		Success: true,
		Message: tracker.RenderText(report),
		Card:    tracker.RenderCard(report, false),
		Data:    report,
	}
}

func (s *TrackPortfolio) history(ctx context.Context, userID string) skill.Result {
	alerts, err := s.deps.Ledger.Alerts(ctx, userID, alertHistoryLimit)
	if err != nil {
		return skill.Fail("❌ 读取提醒历史失败，请稍后再试", err)
	}
	if len(alerts) == 0 {
		return skill.OK("📋 暂无提醒历史")
	}
	return skill.Result{Success: true, Message: renderAlerts(alerts), Data: alerts}
}

func renderAlerts(alerts []portfolio.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 提醒历史（最近 %d 条）\n", len(alerts))
	for _, a := range alerts {
		name := a.Code
		if a.Name != "" {
			name = fmt.Sprintf("%s(%s)", a.Name, a.Code)
		}
		fmt.Fprintf(&b, "\n• %s %s\n  现价 %.2f | 内在价值 %.2f | 安全边际 %+.1f%% | %s",
			a.At.In(markethours.Location()).Format("01-02 15:04"), name,
			a.Price, a.Intrinsic, a.Margin*100, a.Recommendation)
	}
	return b.String()
}
