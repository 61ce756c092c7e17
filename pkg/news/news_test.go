package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topStoriesBody = `{"status":"OK","results":[
{"title":"Markets Rally","abstract":"Stocks rose.","url":"https://www.nytimes.com/a","published_date":"2025-01-10T05:00:00-05:00"},
{"title":"","abstract":"untitled","url":"https://www.nytimes.com/x"},
{"title":"Rates Hold","abstract":"The Fed paused.","url":"https://www.nytimes.com/b","published_date":"2025-01-09"},
{"title":"Third","abstract":"c","url":"https://www.nytimes.com/c"}]}`

func fixedNow() time.Time { return time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC) }

func TestNYTTopStories(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(topStoriesBody))
	}))
	defer server.Close()

	articles, err := NewNYT("k1", WithBaseURL(server.URL)).TopStories(context.Background(), 2)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/svc/topstories/v2/home.json", got.URL.Path)
	assert.Equal(t, "k1", got.URL.Query().Get("api-key"))
	require.Len(t, articles, 2, "untitled entries are skipped before the limit")
	assert.Equal(t, Article{Source: SourceNYT, Title: "Markets Rally", Abstract: "Stocks rose.", URL: "https://www.nytimes.com/a", Published: "2025-01-10"}, articles[0])
	assert.Equal(t, "2025-01-09", articles[1].Published)
}

func TestNYTErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"fault":{"faultstring":"Invalid ApiKey"}}`))
	}))
	defer server.Close()

	_, err := NewNYT("bad", WithBaseURL(server.URL)).TopStories(context.Background(), 3)
	require.ErrorContains(t, err, "Invalid ApiKey")

	_, err = NewNYT("").TopStories(context.Background(), 3)
	require.ErrorIs(t, err, ErrNoAPIKey)
}

type stubStories struct {
	articles []Article
	err      error
	calls    int
}

func (s *stubStories) TopStories(context.Context, int) ([]Article, error) {
	s.calls++
	return s.articles, s.err
}

func TestFeedArticles(t *testing.T) {
	live := []Article{{Source: SourceNYT, Title: "a"}, {Source: SourceNYT, Title: "b"}, {Source: SourceNYT, Title: "c"}}

	tests := []struct {
		name   string
		nyt    TopStories
		source string
		limit  int
		titles []string
	}{
		{"nyt live", &stubStories{articles: live}, SourceNYT, 2, []string{"a", "b"}},
		{"nyt failing falls back", &stubStories{err: errors.New("down")}, SourceNYT, 1, []string{"The Global Economy Shows Resilience Amid Uncertainty"}},
		{"nyt empty falls back", &stubStories{}, SourceNYT, 1, []string{"The Global Economy Shows Resilience Amid Uncertainty"}},
		{"no client", nil, SourceNYT, 1, []string{"The Global Economy Shows Resilience Amid Uncertainty"}},
		{"economist", &stubStories{articles: live}, SourceEconomist, 2, []string{"The World Ahead: A Special Report", "The Return of Industrial Policy"}},
		{"all nyt first", &stubStories{articles: live}, SourceAll, 1, []string{"a", "The World Ahead: A Special Report"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFeed(tt.nyt, tt.limit, fixedNow).Articles(context.Background(), tt.source)
			titles := make([]string, 0, len(got))
			for _, a := range got {
				titles = append(titles, a.Title)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}
}

func TestFeedDefaultsLimit(t *testing.T) {
	got := NewFeed(nil, 0, fixedNow).Articles(context.Background(), SourceAll)
	require.Len(t, got, 6)
	assert.Equal(t, "2025-01-10", got[0].Published)
	assert.Equal(t, SourceEconomist, got[5].Source)
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", SourceAll, true},
		{" NYT ", SourceNYT, true},
		{"Economist", SourceEconomist, true},
		{"all", SourceAll, true},
		{"wsj", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSource(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "纽约时报", Label(SourceNYT))
	assert.Equal(t, "wsj", Label("wsj"))
}
