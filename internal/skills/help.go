package skills

import (
	"context"
	"fmt"
	"strings"

	"feishu-assistant/internal/intent"
	"feishu-assistant/internal/skill"
)

// Help lists the commands and the registered skills. It always succeeds.
type Help struct{ registry *skill.Registry }

func (s *Help) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.Help,
		Description: "查看助手支持的命令和功能",
		Examples:    []string{"你能做什么", "帮助"},
		Params: []skill.Param{
			{Name: "unknown", Type: skill.TypeString, Description: "未识别的命令"},
			{Name: "hint", Type: skill.TypeString, Description: "命令用法提示"},
		},
	}
}

func (s *Help) Execute(_ context.Context, inv skill.Invocation) skill.Result {
	var b strings.Builder
	if cmd := inv.Arg("unknown"); cmd != "" {
		fmt.Fprintf(&b, "❓ 未知命令: %s\n\n", cmd)
	}
	if hint := inv.Arg("hint"); hint != "" {
		fmt.Fprintf(&b, "❓ 用法: %s\n\n", hint)
	}
	b.WriteString("🤖 我可以帮你：\n")
	for _, sc := range s.registry.Schemas() {
		if sc.Name == skill.Help {
			continue
		}
		fmt.Fprintf(&b, "• %s", sc.Description)
		if len(sc.Examples) > 0 {
			fmt.Fprintf(&b, "（如「%s」）", sc.Examples[0])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n⌨️ 快捷命令：\n")
	for _, syntax := range intent.Syntaxes() {
		fmt.Fprintf(&b, "• %s\n", syntax)
	}
	return skill.OK(strings.TrimRight(b.String(), "\n"))
}
