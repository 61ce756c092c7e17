package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// LLMClient is what the recognizer, the chat skill and the fundamentals
// estimator need from a model backend.
type LLMClient interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ChatStructured(ctx context.Context, req *ChatRequest, target interface{}) error
}

// Client speaks the OpenAI chat completions protocol, which Moonshot, DeepSeek
// and most hosted gateways accept.
type Client struct {
	config       *Config
	api          openai.Client
	logger       Logger
	retryHandler *RetryHandler
	httpClient   *http.Client
}

var _ LLMClient = (*Client)(nil)

type ClientOption func(*Client)

func WithLogger(logger Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithRetryHandler(handler *RetryHandler) ClientOption {
	return func(c *Client) { c.retryHandler = handler }
}

// WithHTTPClient routes requests through client, e.g. a go-vcr recorder.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient validates a copy of cfg and builds a client from it.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("llm: config cannot be nil")
	}
	own := cfg.Clone()
	if own.StructuredMode == "" {
		own.StructuredMode = defaultStructuredMode
	}
	if err := own.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: own}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = NewLogger(own.LogLevel)
	}
	if c.retryHandler == nil {
		c.retryHandler = NewRetryHandler(RetryConfig{MaxRetries: own.MaxRetries})
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(own.APIKey),
		option.WithBaseURL(own.BaseURL),
		option.WithRequestTimeout(own.Timeout),
		// RetryHandler owns retries.
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	c.api = openai.NewClient(reqOpts...)
	return c, nil
}

// Chat sends one completion request, retrying transient failures.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("llm: request cannot be nil")
	}
	params, model, err := c.params(req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	c.logger.Debug(ctx, "llm chat request", Fields{"model": model, "messages": len(req.Messages)})

	var completion *openai.ChatCompletion
	attempt := 0
	err = c.retryHandler.Do(ctx, func() error {
		attempt++
		resp, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			c.logger.Warn(ctx, "llm chat attempt failed", Fields{
				"model":   model,
				"attempt": attempt,
				"error":   err.Error(),
			})
			return err
		}
		completion = resp
		return nil
	})
	if err != nil {
		c.logger.Error(ctx, err, Fields{"model": model, "attempts": attempt})
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}

	out := fromCompletion(completion)
	c.logger.Info(ctx, "llm chat done", Fields{
		"model":             model,
		"duration_ms":       time.Since(started).Milliseconds(),
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
	})
	return out, nil
}

// ChatStructured asks for a JSON object and decodes it into target, a non-nil
// pointer. In json_schema mode the schema is derived from target's type.
func (c *Client) ChatStructured(ctx context.Context, req *ChatRequest, target interface{}) error {
	if req == nil {
		return errors.New("llm: request cannot be nil")
	}
	if target == nil {
		return errors.New("llm: structured target cannot be nil")
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("llm: structured target must be a pointer")
	}

	format, err := c.formatFor(rv)
	if err != nil {
		return err
	}
	withFormat := *req
	withFormat.ResponseFormat = format

	resp, err := c.Chat(ctx, &withFormat)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("llm: empty structured response")
	}
	if err := ParseStructured(resp.Choices[0].Message.Content, target); err != nil {
		c.logger.Error(ctx, err, Fields{"model": resp.Model, "finish_reason": resp.Choices[0].FinishReason})
		return err
	}
	return nil
}

func (c *Client) formatFor(target reflect.Value) (*ResponseFormat, error) {
	if c.config.StructuredMode != StructuredJSONSchema {
		return &ResponseFormat{Type: StructuredJSONObject}, nil
	}
	schema, err := GenerateSchema(target.Interface())
	if err != nil {
		return nil, err
	}
	strict := true
	return &ResponseFormat{
		Type:   StructuredJSONSchema,
		Name:   strings.ToLower(target.Type().Elem().Name()),
		Schema: schema,
		Strict: &strict,
	}, nil
}

// GetConfig returns a copy of the effective configuration.
func (c *Client) GetConfig() *Config {
	return c.config.Clone()
}

func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// params maps a request onto SDK parameters. Per-request sampling settings
// win over the model alias defaults.
func (c *Client) params(req *ChatRequest) (openai.ChatCompletionNewParams, string, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, "", errors.New("llm: request requires at least one message")
	}
	model, defaults := c.config.ResolveModel(req.Model)

	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toMessages(req.Messages),
	}
	if rf, ok, err := toResponseFormat(req.ResponseFormat); err != nil {
		return openai.ChatCompletionNewParams{}, "", err
	} else if ok {
		p.ResponseFormat = rf
	}
	if v := pick(req.Temperature, defaults.Temperature); v != nil {
		p.Temperature = openai.Float(*v)
	}
	if v := pick(req.TopP, defaults.TopP); v != nil {
		p.TopP = openai.Float(*v)
	}
	if v := pick(req.MaxTokens, defaults.MaxTokens); v != nil {
		p.MaxTokens = openai.Int(int64(*v))
	}
	return p, model, nil
}

func pick[T any](first, fallback *T) *T {
	if first != nil {
		return first
	}
	return fallback
}

func toMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(msgs))
	for i, m := range msgs {
		switch strings.ToLower(m.Role) {
		case RoleSystem:
			out[i] = openai.SystemMessage(m.Content)
		case RoleAssistant:
			out[i] = openai.AssistantMessage(m.Content)
		default:
			u := openai.UserMessage(m.Content)
			if m.Name != "" && u.OfUser != nil {
				u.OfUser.Name = openai.String(m.Name)
			}
			out[i] = u
		}
	}
	return out
}

func toResponseFormat(f *ResponseFormat) (openai.ChatCompletionNewParamsResponseFormatUnion, bool, error) {
	var none openai.ChatCompletionNewParamsResponseFormatUnion
	if f == nil {
		return none, false, nil
	}
	switch strings.ToLower(f.Type) {
	case "", "text":
		return none, false, nil
	case StructuredJSONObject:
		obj := shared.NewResponseFormatJSONObjectParam()
		return openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &obj}, true, nil
	case StructuredJSONSchema:
		schema, ok := f.Schema.(map[string]any)
		if !ok {
			return none, false, errors.New("llm: json_schema requires map schema")
		}
		name := f.Name
		if name == "" {
			name = "structured_output"
		}
		def := shared.ResponseFormatJSONSchemaJSONSchemaParam{Name: name, Schema: schema}
		if f.Strict != nil {
			def.Strict = openai.Bool(*f.Strict)
		}
		if d := strings.TrimSpace(f.Description); d != "" {
			def.Description = openai.String(d)
		}
		js := shared.ResponseFormatJSONSchemaParam{JSONSchema: def}
		js.Type = js.Type.Default()
		return openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONSchema: &js}, true, nil
	default:
		return none, false, fmt.Errorf("llm: unsupported response format %q", f.Type)
	}
}

func fromCompletion(resp *openai.ChatCompletion) *ChatResponse {
	if resp == nil {
		return &ChatResponse{}
	}
	out := &ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		Choices: make([]Choice, 0, len(resp.Choices)),
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        int(ch.Index),
			Message:      Message{Role: string(ch.Message.Role), Content: ch.Message.Content},
			FinishReason: ch.FinishReason,
		})
	}
	return out
}
