// Package skill defines the contract between the intent recognizer and the
// handlers that answer users, plus the registry that holds them.
package skill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/zeromicro/go-zero/core/mapping"

	"feishu-assistant/pkg/feishu"
)

// ErrDuplicateSkill is returned when a name is registered twice.
var ErrDuplicateSkill = errors.New("skill: duplicate skill name")

// Parameter types understood by Schema.Validate.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
)

// Param describes one argument of a skill.
type Param struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     string   `json:"default,omitempty"`
}

// Schema is the self-description a skill exposes to the recognizer and help.
type Schema struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	Params      []Param  `json:"parameters"`
}

// Validate checks args against the declared parameters: required keys are
// present, enum values are members and numbers parse. Unknown keys are
// ignored.
func (s Schema) Validate(args map[string]string) error {
	for _, p := range s.Params {
		v, ok := args[p.Name]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			if p.Required {
				return fmt.Errorf("%s: missing required parameter %q", s.Name, p.Name)
			}
			continue
		}
		if len(p.Enum) > 0 && !contains(p.Enum, v) {
			return fmt.Errorf("%s: %s must be one of %s, got %q", s.Name, p.Name, strings.Join(p.Enum, "|"), v)
		}
		switch p.Type {
		case TypeInteger:
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				return fmt.Errorf("%s: %s must be an integer, got %q", s.Name, p.Name, v)
			}
		case TypeNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("%s: %s must be a number, got %q", s.Name, p.Name, v)
			}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// Invocation is one request to run a skill.
type Invocation struct {
	UserID    string
	ChatID    string
	MessageID string
	// Text is the raw user message that produced the invocation.
	Text string
	Args map[string]string
}

// Arg returns a trimmed argument, or "".
func (inv Invocation) Arg(name string) string {
	return strings.TrimSpace(inv.Args[name])
}

// Result is what a skill hands back to the dispatcher. Card, when set, is
// preferred over Message for the reply.
type Result struct {
	Success bool
	Message string
	Card    *feishu.Card
	Data    any
	Err     error
}

// OK builds a successful text result.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail builds a failed result. message is shown to the user, err is only
// logged.
func Fail(message string, err error) Result {
	return Result{Message: message, Err: err}
}

// Failf formats a user-facing failure message.
func Failf(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// WithCard attaches an interactive card to the result.
func (r Result) WithCard(card *feishu.Card) Result {
	r.Card = card
	return r
}

// Skill is a user-facing capability.
type Skill interface {
	Schema() Schema
	Execute(ctx context.Context, inv Invocation) Result
}

// Registry maps names to skills. It is safe for concurrent reads after
// registration.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register adds s, rejecting an empty or already registered name.
func (r *Registry) Register(s Skill) error {
	name := s.Schema().Name
	if strings.TrimSpace(name) == "" {
		return errors.New("skill: empty skill name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSkill, name)
	}
	r.skills[name] = s
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers every skill and panics on the first failure.
func (r *Registry) MustRegister(skills ...Skill) {
	for _, s := range skills {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// Schemas lists the registered schemas in registration order.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.skills[name].Schema())
	}
	return out
}

var argUnmarshaler = mapping.NewUnmarshaler("arg", mapping.WithStringValues())

// Bind decodes string args into dst, a pointer to a struct whose fields carry
// `arg` tags (`arg:"days,default=7,range=[1:30]"`).
func Bind(args map[string]string, dst any) error {
	m := make(map[string]any, len(args))
	for k, v := range args {
		if v = strings.TrimSpace(v); v != "" {
			m[k] = v
		}
	}
	if err := argUnmarshaler.Unmarshal(m, dst); err != nil {
		return fmt.Errorf("skill: bind args: %w", err)
	}
	return nil
}
