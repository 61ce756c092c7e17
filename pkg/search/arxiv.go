package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const arxivBaseURL = "http://export.arxiv.org"

// Arxiv queries the arXiv Atom export API.
type Arxiv struct {
	http *resty.Client
}

// NewArxiv constructs an arXiv client.
func NewArxiv(opts ...Option) *Arxiv {
	o := buildOptions(options{baseURL: arxivBaseURL}, opts)
	if o.baseURL == "" {
		o.baseURL = arxivBaseURL
	}
	return &Arxiv{http: o.restClient().SetHeader("Accept", "application/atom+xml")}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Rel   string `xml:"rel,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

// SearchPapers returns the newest submissions matching topic.
func (a *Arxiv) SearchPapers(ctx context.Context, topic string, limit int) ([]Paper, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("search: arxiv topic is required")
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_query": "all:" + topic,
			"start":        "0",
			"max_results":  strconv.Itoa(limit),
			"sortBy":       "submittedDate",
			"sortOrder":    "descending",
		}).
		Get("/api/query")
	if err != nil {
		return nil, fmt.Errorf("search: arxiv: %w", err)
	}
	if code := resp.StatusCode(); code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable {
		return nil, fmt.Errorf("%w: arxiv http %d", ErrRateLimited, resp.StatusCode())
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search: arxiv: http %d", resp.StatusCode())
	}
	return parseFeed(resp.Body(), limit)
}

func parseFeed(body []byte, limit int) ([]Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("search: arxiv: decode feed: %w", err)
	}
	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if limit > 0 && len(papers) >= limit {
			break
		}
		p := Paper{
			ID:      arxivID(e.ID),
			Title:   collapse(e.Title),
			Summary: collapse(e.Summary),
			URL:     strings.TrimSpace(e.ID),
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
			p.Published = t
		}
		for _, a := range e.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}
		for _, c := range e.Categories {
			p.Categories = append(p.Categories, c.Term)
		}
		for _, l := range e.Links {
			switch {
			case l.Title == "pdf":
				p.PDFURL = l.Href
			case l.Rel == "alternate":
				p.URL = l.Href
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// arxivID turns http://arxiv.org/abs/2401.01234v1 into 2401.01234v1.
func arxivID(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "/abs/"); i >= 0 {
		return raw[i+len("/abs/"):]
	}
	return raw
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
