package svc

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/bot"
	"feishu-assistant/pkg/feishu"
)

// Deliver hands a received user text message to the dispatcher on the
// bounded runner and returns at once. Bot senders and non-text messages are
// dropped.
func (s *ServiceContext) Deliver(ctx context.Context, m *feishu.MessageEvent) {
	if m == nil || m.FromApp() {
		return
	}
	if m.MessageType != feishu.MsgTypeText || m.Text == "" {
		logx.WithContext(ctx).Infof("feishu events: skip %s message %s", m.MessageType, m.MessageID)
		return
	}
	msg := bot.Message{UserID: m.OpenID, MessageID: m.MessageID, ChatID: m.ChatID, Text: m.Text}
	s.Runner.Schedule(func() {
		s.Dispatcher.Handle(context.Background(), msg)
	})
}
