package skills

import (
	"context"

	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/llm"
)

const (
	chatHistoryTurns = 10
	chatPersona      = "你是一个运行在飞书里的智能助手，擅长股票行情、价值投资、开源项目和学术论文相关的问题。回答简洁、准确，使用中文。涉及投资时提醒用户注意风险。"
	chatUnavailable  = "🤖 对话服务暂未配置。发送 /help 查看可用的功能。"
)

type chatArgs struct {
	Message string `arg:"message"`
}

// Chat answers free-form messages through the LLM with the session history
// as context.
type Chat struct{ deps Deps }

func (s *Chat) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.Chat,
		Description: "通用对话和闲聊，回答一般性问题",
		Examples:    []string{"你好", "什么是市盈率"},
		Params: []skill.Param{
			{Name: "message", Type: skill.TypeString, Required: true, Description: "用户的消息内容"},
		},
	}
}

func (s *Chat) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	var args chatArgs
	if err := skill.Bind(inv.Args, &args); err != nil {
		return skill.Fail("❓ 想聊点什么？", err)
	}
	if s.deps.LLM == nil {
		return skill.OK(chatUnavailable)
	}

	messages := []llm.Message{llm.System(chatPersona)}
	var history []session.Turn
	if s.deps.Sessions != nil {
		history = s.deps.Sessions.History(ctx, inv.UserID)
	}
	if len(history) > chatHistoryTurns {
		history = history[len(history)-chatHistoryTurns:]
	}
	for _, t := range history {
		switch t.Role {
		case session.RoleUser:
			messages = append(messages, llm.User(t.Content))
		case session.RoleAssistant:
			messages = append(messages, llm.Assistant(t.Content))
		}
	}
	// The dispatcher usually appended the message already.
	if n := len(history); n == 0 || history[n-1].Role != session.RoleUser || history[n-1].Content != inv.Text {
		messages = append(messages, llm.User(args.Message))
	}

	resp, err := s.deps.LLM.Chat(ctx, &llm.ChatRequest{Model: s.deps.ChatModel, Messages: messages, Temperature: llm.Float(0.7)})
	if err != nil {
		return skill.Fail("❌ 对话服务暂时不可用，请稍后再试", err)
	}
	answer := resp.Text()
	if answer == "" {
		return skill.Failf("❌ 对话服务没有返回内容，请稍后再试")
	}
	return skill.OK(answer)
}
