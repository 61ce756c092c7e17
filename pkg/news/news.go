// Package news collects the articles behind the daily reading digest: New
// York Times top stories through the public API, and preset picks when a
// source is unavailable.
package news

import (
	"context"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

// Sources of the digest.
const (
	SourceNYT       = "nyt"
	SourceEconomist = "economist"
	SourceAll       = "all"
)

const defaultLimit = 3

var sourceLabels = map[string]string{
	SourceNYT:       "纽约时报",
	SourceEconomist: "经济学人",
}

// Label returns the display name of source, or source itself.
func Label(source string) string {
	if l, ok := sourceLabels[source]; ok {
		return l
	}
	return source
}

// Article is one story to be studied.
type Article struct {
	Source    string `msgpack:"source" json:"source"`
	Title     string `msgpack:"title" json:"title"`
	Abstract  string `msgpack:"abstract" json:"abstract"`
	URL       string `msgpack:"url" json:"url"`
	Published string `msgpack:"published" json:"published_date"`
}

// ParseSource normalizes a source argument; empty means all.
func ParseSource(s string) (string, bool) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "":
		return SourceAll, true
	case SourceNYT, SourceEconomist, SourceAll:
		return v, true
	default:
		return "", false
	}
}

// TopStories is the NYT side of the feed.
type TopStories interface {
	TopStories(ctx context.Context, limit int) ([]Article, error)
}

// Feed picks up to limit articles per source. A nil or failing NYT client
// falls back to the preset picks; the Economist has no public API and always
// uses them.
type Feed struct {
	nyt   TopStories
	limit int
	now   func() time.Time
}

// NewFeed builds a Feed. nyt may be nil.
func NewFeed(nyt TopStories, limit int, now func() time.Time) *Feed {
	if limit <= 0 {
		limit = defaultLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Feed{nyt: nyt, limit: limit, now: now}
}

// Articles returns the articles of source (SourceAll for both), NYT first.
func (f *Feed) Articles(ctx context.Context, source string) []Article {
	var out []Article
	if source == SourceAll || source == SourceNYT {
		out = append(out, f.nytArticles(ctx)...)
	}
	if source == SourceAll || source == SourceEconomist {
		out = append(out, clip(Presets(SourceEconomist, f.now()), f.limit)...)
	}
	return out
}

func (f *Feed) nytArticles(ctx context.Context) []Article {
	if f.nyt != nil {
		articles, err := f.nyt.TopStories(ctx, f.limit)
		if err == nil && len(articles) > 0 {
			return clip(articles, f.limit)
		}
		if err != nil {
			logx.WithContext(ctx).Infof("news: nyt top stories, using presets: %v", err)
		}
	}
	return clip(Presets(SourceNYT, f.now()), f.limit)
}

func clip(articles []Article, n int) []Article {
	if len(articles) > n {
		return articles[:n]
	}
	return articles
}

// Presets returns the fallback picks of source dated at day.
func Presets(source string, day time.Time) []Article {
	date := day.Format("2006-01-02")
	var picks [][2]string
	var url string
	switch source {
	case SourceNYT:
		url = "https://www.nytimes.com"
		picks = [][2]string{
			{"The Global Economy Shows Resilience Amid Uncertainty", "Despite ongoing challenges, the global economy demonstrates surprising strength as inflation cools and employment remains robust."},
			{"Climate Summit Reaches Historic Agreement", "World leaders commit to ambitious carbon reduction targets in landmark climate accord."},
			{"Technology Giants Report Strong Quarterly Earnings", "Major tech companies exceed expectations as AI investments begin to pay off."},
		}
	case SourceEconomist:
		url = "https://www.economist.com"
		picks = [][2]string{
			{"The World Ahead: A Special Report", "Our annual forecast examines the key trends shaping the global economy, politics and technology."},
			{"The Return of Industrial Policy", "Governments worldwide are rediscovering the benefits of directing economic activity."},
			{"Artificial Intelligence: The Next Chapter", "As AI models become more capable, the debate shifts from what they can do to how they should be governed."},
		}
	default:
		return nil
	}
	out := make([]Article, 0, len(picks))
	for _, p := range picks {
		out = append(out, Article{Source: source, Title: p[0], Abstract: p[1], URL: url, Published: date})
	}
	return out
}
