// Package bot turns inbound chat messages into skill executions and replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zeromicro/go-zero/core/collection"
	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/intent"
	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/feishu"
)

const (
	DefaultTimeout       = time.Minute
	DefaultDedupCapacity = 1000

	// FailureReply is the only text users see when handling breaks.
	FailureReply = "❌ 处理失败，请稍后再试"

	// assistant turns are stored shortened; the full reply lives in the chat.
	storedReplyRunes = 100
	// dedup entries outlive any realistic redelivery window.
	dedupExpiry = 24 * time.Hour
)

// Message is an inbound text message. UserID is the sender open_id.
type Message struct {
	UserID    string
	MessageID string
	ChatID    string
	Text      string
}

// Resolver maps text to an intent.
type Resolver interface {
	Resolve(ctx context.Context, text string, history []session.Turn) intent.Intent
}

// Dispatcher handles one message end to end: dedup, session bookkeeping,
// intent resolution, skill execution and the reply.
type Dispatcher struct {
	sessions *session.Manager
	resolver Resolver
	registry *skill.Registry
	sender   feishu.Sender
	timeout  time.Duration

	mu   sync.Mutex
	seen *collection.Cache
}

type Option func(*options)

type options struct {
	timeout  time.Duration
	capacity int
}

// WithTimeout bounds a message from resolution to reply.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDedupCapacity sets how many recent message ids are remembered.
func WithDedupCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

func NewDispatcher(sessions *session.Manager, resolver Resolver, registry *skill.Registry, sender feishu.Sender, opts ...Option) (*Dispatcher, error) {
	if sessions == nil || resolver == nil || registry == nil || sender == nil {
		return nil, errors.New("bot: sessions, resolver, registry and sender are required")
	}
	o := options{timeout: DefaultTimeout, capacity: DefaultDedupCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	seen, err := collection.NewCache(dedupExpiry, collection.WithLimit(o.capacity), collection.WithName("bot-dedup"))
	if err != nil {
		return nil, fmt.Errorf("bot: dedup cache: %w", err)
	}
	return &Dispatcher{
		sessions: sessions,
		resolver: resolver,
		registry: registry,
		sender:   sender,
		timeout:  o.timeout,
		seen:     seen,
	}, nil
}

// Handle processes msg and replies to its sender. It never returns an error:
// failures are logged and answered with FailureReply.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.UserID == "" {
		return
	}
	if msg.MessageID != "" && !d.firstSeen(msg.MessageID) {
		logx.WithContext(ctx).Infof("bot: skip duplicate message %s", msg.MessageID)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logx.WithContext(ctx).Errorf("bot: panic handling %s: %v\n%s", msg.MessageID, r, debug.Stack())
			d.reply(ctx, msg.UserID, skill.Result{Message: FailureReply})
		}
	}()

	history := d.sessions.History(ctx, msg.UserID)
	d.sessions.Append(ctx, msg.UserID, session.RoleUser, text)

	in := d.resolver.Resolve(ctx, text, history)
	logx.WithContext(ctx).Infof("bot: %s -> %s (%s, %.2f)", msg.MessageID, in.Skill, in.Source, in.Confidence)

	res := d.execute(ctx, msg, text, in)
	d.reply(ctx, msg.UserID, res)
	d.sessions.Append(ctx, msg.UserID, session.RoleAssistant, shorten(res.Message, storedReplyRunes))
}

// firstSeen records id and reports whether it was new.
func (d *Dispatcher) firstSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Get(id); ok {
		return false
	}
	d.seen.Set(id, struct{}{})
	return true
}

func (d *Dispatcher) execute(ctx context.Context, msg Message, text string, in intent.Intent) skill.Result {
	s, ok := d.registry.Get(in.Skill)
	if !ok {
		logx.WithContext(ctx).Errorf("bot: intent names unregistered skill %q", in.Skill)
		return skill.Result{Message: FailureReply}
	}
	res := s.Execute(ctx, skill.Invocation{
		UserID:    msg.UserID,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Text:      text,
		Args:      in.Args,
	})
	if res.Err != nil {
		logx.WithContext(ctx).Errorf("bot: %s for %s: %v", in.Skill, msg.UserID, res.Err)
	}
	if strings.TrimSpace(res.Message) == "" && res.Card == nil {
		res.Message = FailureReply
	}
	return res
}

// reply sends the card when there is one, falling back to the text.
func (d *Dispatcher) reply(ctx context.Context, userID string, res skill.Result) {
	// A timed-out handling context must not swallow the reply.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if res.Card != nil {
		err := d.sender.SendCard(sendCtx, userID, res.Card)
		if err == nil {
			return
		}
		logx.WithContext(ctx).Errorf("bot: send card to %s: %v", userID, err)
		if res.Message == "" {
			return
		}
	}
	if err := d.sender.SendText(sendCtx, userID, res.Message); err != nil {
		logx.WithContext(ctx).Errorf("bot: send text to %s: %v", userID, err)
	}
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
