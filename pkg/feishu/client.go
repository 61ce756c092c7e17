// Package feishu adapts the Feishu (Lark) open platform SDK to the
// assistant: message sending, event dispatch for the webhook and long
// connection transports, and interactive cards.
package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultHTTPTimeout = 10 * time.Second

	MsgTypeText        = "text"
	MsgTypeInteractive = "interactive"
)

// Sender delivers messages to a user.
type Sender interface {
	SendText(ctx context.Context, openID, text string) error
	SendCard(ctx context.Context, openID string, card *Card) error
}

// Client sends messages through the OpenAPI. Tenant tokens are fetched and
// cached by the SDK.
type Client struct {
	api *lark.Client
}

var _ Sender = (*Client)(nil)

type clientOptions struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL overrides the OpenAPI host, e.g. https://open.larksuite.com.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport swaps the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// NewClient constructs an OpenAPI client for the given app credentials.
func NewClient(appID, appSecret string, opts ...Option) *Client {
	o := clientOptions{timeout: defaultHTTPTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	larkOpts := []lark.ClientOptionFunc{
		lark.WithReqTimeout(o.timeout),
		lark.WithLogger(Logger()),
		lark.WithLogLevel(larkcore.LogLevelInfo),
	}
	if o.baseURL != "" {
		larkOpts = append(larkOpts, lark.WithOpenBaseUrl(o.baseURL))
	}
	if o.transport != nil {
		larkOpts = append(larkOpts, lark.WithHttpClient(&http.Client{Transport: o.transport, Timeout: o.timeout}))
	}
	return &Client{api: lark.NewClient(appID, appSecret, larkOpts...)}
}

// APIError is a non-zero code in an OpenAPI response body.
type APIError struct {
	Code      int
	Msg       string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu: api error code=%d msg=%s request_id=%s", e.Code, e.Msg, e.RequestID)
}

// SendText sends a plain text message to the user identified by openID.
func (c *Client) SendText(ctx context.Context, openID, text string) error {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	return c.send(ctx, openID, MsgTypeText, string(content))
}

// SendCard sends an interactive card.
func (c *Client) SendCard(ctx context.Context, openID string, card *Card) error {
	content, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("feishu: encode card: %w", err)
	}
	return c.send(ctx, openID, MsgTypeInteractive, string(content))
}

func (c *Client) send(ctx context.Context, openID, msgType, content string) error {
	if openID == "" {
		return fmt.Errorf("feishu: receive id is required")
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.api.Im.V1.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("feishu: send %s: %w", msgType, err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg, RequestID: resp.RequestId()}
	}
	if resp.Data != nil && resp.Data.MessageId != nil {
		logx.WithContext(ctx).Debugf("feishu: sent %s message_id=%s", msgType, *resp.Data.MessageId)
	}
	return nil
}
