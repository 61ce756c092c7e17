package skills

import (
	"context"
	"fmt"
	"strings"

	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/markethours"
)

type sessionArgs struct {
	Action string `arg:"action,default=status,options=clear|status"`
}

// Session clears the conversation or reports its state.
type Session struct{ deps Deps }

func (s *Session) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.Session,
		Description: "清空对话历史或查看会话状态与市场开市情况",
		Examples:    []string{"清空对话", "现在哪些市场开盘"},
		Params: []skill.Param{
			{Name: "action", Type: skill.TypeString, Enum: []string{"clear", "status"}, Default: "status", Description: "操作"},
		},
	}
}

func (s *Session) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	var args sessionArgs
	if err := skill.Bind(inv.Args, &args); err != nil {
		return skill.Fail("❓ 支持的操作: clear、status", err)
	}
	if args.Action == "clear" {
		if s.deps.Sessions != nil {
			s.deps.Sessions.Clear(ctx, inv.UserID)
		}
		return skill.OK("🧹 已清空对话历史")
	}

	var b strings.Builder
	b.WriteString("ℹ️ 会话状态\n")
	if s.deps.Sessions != nil {
		fmt.Fprintf(&b, "• 对话记录: %d 条\n", len(s.deps.Sessions.History(ctx, inv.UserID)))
	}
	now := s.deps.now()
	b.WriteString("• 市场状态:\n")
	for _, m := range markethours.All() {
		status := "🔴 休市"
		if markethours.IsOpen(m, now) {
			status = "🟢 交易中"
		}
		fmt.Fprintf(&b, "  %s %s\n", marketFlags[string(m)], status)
	}
	fmt.Fprintf(&b, "⏰ 北京时间 %s", now.In(markethours.Location()).Format("2006-01-02 15:04"))
	return skill.OK(b.String())
}
