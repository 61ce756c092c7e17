package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/zeromicro/go-zero/core/logx"
)

// SenderTypeApp marks messages sent by bots, including this one.
const SenderTypeApp = "app"

var errEmptyEvent = errors.New("feishu: message event without payload")

// MessageEvent is the subset of a received message the assistant uses.
type MessageEvent struct {
	EventID     string
	MessageID   string
	ChatID      string
	ChatType    string
	MessageType string
	OpenID      string
	SenderType  string
	// Text is the plain text with @mention placeholders removed; empty for
	// non-text messages.
	Text string
}

// FromApp reports whether the message was sent by a bot.
func (m *MessageEvent) FromApp() bool { return m.SenderType == SenderTypeApp }

// MessageHandler receives converted im.message.receive_v1 events. It must not
// block: the long connection and the webhook wait for it to return.
type MessageHandler func(ctx context.Context, msg *MessageEvent)

var mentionPattern = regexp.MustCompile(`@_user_\d+`)

// NewEventDispatcher returns the SDK dispatcher shared by the webhook handler
// and the long connection. Empty token or key disable the matching check.
// Events that cannot be converted are logged and acknowledged.
func NewEventDispatcher(verificationToken, encryptKey string, onMessage MessageHandler) *dispatcher.EventDispatcher {
	return dispatcher.NewEventDispatcher(verificationToken, encryptKey).
		OnP2MessageReceiveV1(func(ctx context.Context, ev *larkim.P2MessageReceiveV1) error {
			msg, err := MessageFromEvent(ev)
			if err != nil {
				logx.WithContext(ctx).Errorf("feishu: drop message event: %v", err)
				return nil
			}
			onMessage(ctx, msg)
			return nil
		})
}

// MessageFromEvent converts an SDK event. Text content is decoded and
// stripped of mention placeholders.
func MessageFromEvent(ev *larkim.P2MessageReceiveV1) (*MessageEvent, error) {
	if ev == nil || ev.Event == nil || ev.Event.Message == nil {
		return nil, errEmptyEvent
	}
	m := ev.Event.Message
	out := &MessageEvent{
		MessageID:   deref(m.MessageId),
		ChatID:      deref(m.ChatId),
		ChatType:    deref(m.ChatType),
		MessageType: deref(m.MessageType),
	}
	if ev.EventV2Base != nil && ev.EventV2Base.Header != nil {
		out.EventID = ev.EventV2Base.Header.EventID
	}
	if s := ev.Event.Sender; s != nil {
		out.SenderType = deref(s.SenderType)
		if s.SenderId != nil {
			out.OpenID = deref(s.SenderId.OpenId)
		}
	}
	if out.MessageType == MsgTypeText {
		var content struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(deref(m.Content)), &content); err != nil {
			return nil, fmt.Errorf("feishu: decode text content of %s: %w", out.MessageID, err)
		}
		out.Text = strings.TrimSpace(mentionPattern.ReplaceAllString(content.Text, ""))
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
