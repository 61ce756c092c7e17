// Package intent turns a user message into a skill name and arguments:
// slash commands and a few fixed phrasings are resolved locally, everything
// else goes to the LLM.
package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/llm"
)

// Source records which path produced an intent.
type Source string

const (
	SourceCommand  Source = "command"
	SourceKeyword  Source = "keyword"
	SourceTrade    Source = "trade"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

const (
	defaultTemperature = 0.3
	historyTurns       = 3
	historyRunes       = 100
	defaultConfidence  = 0.8
)

// Intent is the resolved plan for one message.
type Intent struct {
	Skill      string
	Args       map[string]string
	Source     Source
	Confidence float64
	Reasoning  string
	// Hint carries a usage line when a command was recognized with wrong
	// arguments.
	Hint string
}

// plan is the JSON object the LLM is asked to produce.
type plan struct {
	Skill      string         `json:"skill"`
	Parameters map[string]any `json:"parameters"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// Recognizer resolves messages against a skill registry. A nil LLM client
// sends every unmatched message to chat.
type Recognizer struct {
	registry    *skill.Registry
	client      llm.LLMClient
	model       string
	temperature float64
	system      *llm.PromptTemplate
}

type Option func(*Recognizer)

// WithModel selects the model alias used for recognition.
func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

func WithTemperature(t float64) Option {
	return func(r *Recognizer) { r.temperature = t }
}

func NewRecognizer(registry *skill.Registry, client llm.LLMClient, opts ...Option) (*Recognizer, error) {
	tmpl, err := llm.ParsePromptTemplate("intent_system", systemPrompt, template.FuncMap{
		"join": strings.Join,
	})
	if err != nil {
		return nil, fmt.Errorf("intent: %w", err)
	}
	r := &Recognizer{
		registry:    registry,
		client:      client,
		temperature: defaultTemperature,
		system:      tmpl,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve never fails: anything it cannot place goes to the chat skill.
func (r *Recognizer) Resolve(ctx context.Context, text string, history []session.Turn) Intent {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return resolveCommand(text)
	}
	if isPortfolioQuery(text) {
		return Intent{
			Skill:      skill.ManagePortfolio,
			Args:       map[string]string{"action": "query"},
			Source:     SourceKeyword,
			Confidence: 1,
		}
	}
	if t, ok := ParseTrade(text); ok {
		return Intent{Skill: skill.ManagePortfolio, Args: t.Args(), Source: SourceTrade, Confidence: 0.9}
	}
	if r.client == nil {
		return fallback(text, "no llm configured")
	}
	return r.recognize(ctx, text, history)
}

func (r *Recognizer) recognize(ctx context.Context, text string, history []session.Turn) Intent {
	schemas := r.registry.Schemas()
	system, err := r.system.Render(struct{ Schemas []skill.Schema }{schemas})
	if err != nil {
		logx.WithContext(ctx).Errorf("intent: render prompt: %v", err)
		return fallback(text, "prompt error")
	}

	var p plan
	req := &llm.ChatRequest{
		Model:       r.model,
		Messages:    []llm.Message{llm.System(system), llm.User(userPrompt(text, history))},
		Temperature: llm.Float(r.temperature),
	}
	if err := r.client.ChatStructured(ctx, req, &p); err != nil {
		logx.WithContext(ctx).Errorf("intent: llm recognition failed: %v", err)
		return fallback(text, "llm error")
	}

	s, ok := r.registry.Get(p.Skill)
	if !ok {
		logx.WithContext(ctx).Infof("intent: llm picked unknown skill %q", p.Skill)
		return fallback(text, "unknown skill "+p.Skill)
	}
	args := stringify(p.Parameters)
	if p.Skill == skill.Chat && args["message"] == "" {
		args["message"] = text
	}
	if err := s.Schema().Validate(args); err != nil {
		logx.WithContext(ctx).Infof("intent: llm arguments rejected: %v", err)
		return fallback(text, err.Error())
	}
	confidence := p.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = defaultConfidence
	}
	return Intent{Skill: p.Skill, Args: args, Source: SourceLLM, Confidence: confidence, Reasoning: p.Reasoning}
}

func fallback(text, reason string) Intent {
	return Intent{
		Skill:      skill.Chat,
		Args:       map[string]string{"message": text},
		Source:     SourceFallback,
		Confidence: 0.5,
		Reasoning:  reason,
	}
}

func userPrompt(text string, history []session.Turn) string {
	var b strings.Builder
	b.WriteString("用户输入: ")
	b.WriteString(text)
	b.WriteString("\n\n")
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) > 0 {
		b.WriteString("对话历史:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, truncate(t.Content, historyRunes))
		}
		b.WriteString("\n")
	}
	b.WriteString("请分析用户意图并输出 JSON 格式的执行计划。")
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// stringify flattens LLM parameters into strings; JSON numbers arrive as
// float64.
func stringify(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = strings.TrimSpace(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

const systemPrompt = `你是一个飞书智能助手，负责理解用户意图并选择合适的技能来执行。

## 可用技能
{{- range .Schemas}}
- {{.Name}}: {{.Description}}
{{- range .Params}}
  - {{.Name}} ({{.Type}}{{if .Required}}, 必填{{end}}{{if .Enum}}, 取值 {{join .Enum "|"}}{{end}}): {{.Description}}
{{- end}}
{{- if .Examples}}
  示例: {{join .Examples "；"}}
{{- end}}
{{- end}}

## 输出格式
只输出一个 JSON 对象：
{"skill": "技能名称", "parameters": {"参数名": "参数值"}, "confidence": 0.9, "reasoning": "选择理由"}

要求：
- skill 必须是可用技能列表中的名称
- parameters 必须符合该技能的参数定义
- confidence 为 0 到 1 之间的置信度
- 无法判断时选择 chat，并把用户原话放进 message 参数
`
