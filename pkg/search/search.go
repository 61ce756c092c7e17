// Package search queries public discovery APIs: GitHub repository search and
// the arXiv paper feed.
package search

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrRateLimited is returned when an upstream rejects a request for quota
// reasons.
var ErrRateLimited = errors.New("search: rate limited")

const defaultHTTPTimeout = 15 * time.Second

// Repo is a repository search hit.
type Repo struct {
	FullName    string    `msgpack:"full_name" json:"full_name"`
	Description string    `msgpack:"description" json:"description"`
	URL         string    `msgpack:"url" json:"url"`
	Language    string    `msgpack:"language" json:"language"`
	Stars       int       `msgpack:"stars" json:"stars"`
	Forks       int       `msgpack:"forks" json:"forks"`
	Topics      []string  `msgpack:"topics" json:"topics"`
	PushedAt    time.Time `msgpack:"pushed_at" json:"pushed_at"`
}

// Paper is an arXiv entry.
type Paper struct {
	ID         string    `msgpack:"id" json:"id"`
	Title      string    `msgpack:"title" json:"title"`
	Summary    string    `msgpack:"summary" json:"summary"`
	Authors    []string  `msgpack:"authors" json:"authors"`
	Categories []string  `msgpack:"categories" json:"categories"`
	URL        string    `msgpack:"url" json:"url"`
	PDFURL     string    `msgpack:"pdf_url" json:"pdf_url"`
	Published  time.Time `msgpack:"published" json:"published"`
}

// Option configures a search client.
type Option func(*options)

type options struct {
	baseURL    string
	token      string
	timeout    time.Duration
	maxRetries int
	perMinute  int
	transport  http.RoundTripper
	now        func() time.Time
}

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option { return func(o *options) { o.baseURL = url } }

// WithToken sets a bearer token (GitHub only).
func WithToken(token string) Option { return func(o *options) { o.token = token } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithMaxRetries sets the resty retry budget.
func WithMaxRetries(n int) Option { return func(o *options) { o.maxRetries = n } }

// WithRateLimit caps outgoing requests per minute; zero disables limiting.
func WithRateLimit(perMinute int) Option { return func(o *options) { o.perMinute = perMinute } }

// WithTransport swaps the HTTP transport.
func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

// WithClock overrides the time source used for date filters.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(defaults options, opts []Option) options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultHTTPTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o options) restClient() *resty.Client {
	c := resty.New().
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetHeader("User-Agent", "feishu-assistant")
	if o.maxRetries > 0 {
		c.SetRetryCount(o.maxRetries)
	}
	if o.transport != nil {
		c.SetTransport(o.transport)
	}
	return c
}
