package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	nytBaseURL         = "https://api.nytimes.com"
	nytTopStoriesPath  = "/svc/topstories/v2/{section}.json"
	defaultHTTPTimeout = 15 * time.Second
)

// ErrNoAPIKey is returned by NYT when no API key is configured.
var ErrNoAPIKey = errors.New("news: nyt api key is not set")

// Option configures NYT.
type Option func(*options)

type options struct {
	baseURL   string
	section   string
	timeout   time.Duration
	transport http.RoundTripper
}

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option { return func(o *options) { o.baseURL = url } }

// WithSection picks the top stories section, home by default.
func WithSection(section string) Option { return func(o *options) { o.section = section } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithTransport swaps the HTTP transport.
func WithTransport(rt http.RoundTripper) Option { return func(o *options) { o.transport = rt } }

// NYT reads the Top Stories API.
type NYT struct {
	http    *resty.Client
	apiKey  string
	section string
}

var _ TopStories = (*NYT)(nil)

// NewNYT constructs a Top Stories client.
func NewNYT(apiKey string, opts ...Option) *NYT {
	o := options{baseURL: nytBaseURL, section: "home", timeout: defaultHTTPTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = nytBaseURL
	}
	if o.timeout <= 0 {
		o.timeout = defaultHTTPTimeout
	}
	c := resty.New().
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetHeader("User-Agent", "feishu-assistant")
	if o.transport != nil {
		c.SetTransport(o.transport)
	}
	return &NYT{http: c, apiKey: apiKey, section: o.section}
}

type topStoriesResponse struct {
	Status string `json:"status"`
	Fault  *struct {
		FaultString string `json:"faultstring"`
	} `json:"fault"`
	Results []struct {
		Title         string `json:"title"`
		Abstract      string `json:"abstract"`
		URL           string `json:"url"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

// TopStories returns up to limit stories, skipping entries without a title.
func (n *NYT) TopStories(ctx context.Context, limit int) ([]Article, error) {
	if n.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetPathParam("section", n.section).
		SetQueryParam("api-key", n.apiKey).
		Get(nytTopStoriesPath)
	if err != nil {
		return nil, fmt.Errorf("news: nyt: %w", err)
	}
	var payload topStoriesResponse
	if resp.IsError() {
		_ = json.Unmarshal(resp.Body(), &payload)
		if payload.Fault != nil {
			return nil, fmt.Errorf("news: nyt: http %d: %s", resp.StatusCode(), payload.Fault.FaultString)
		}
		return nil, fmt.Errorf("news: nyt: http %d", resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("news: nyt: decode: %w", err)
	}

	out := make([]Article, 0, len(payload.Results))
	for _, r := range payload.Results {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r.Title == "" {
			continue
		}
		published := r.PublishedDate
		if t, err := time.Parse(time.RFC3339, published); err == nil {
			published = t.Format("2006-01-02")
		}
		out = append(out, Article{
			Source:    SourceNYT,
			Title:     r.Title,
			Abstract:  r.Abstract,
			URL:       r.URL,
			Published: published,
		})
	}
	return out, nil
}
