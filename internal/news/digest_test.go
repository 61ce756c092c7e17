package news

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/llm"
	"feishu-assistant/pkg/news"
)

type stubFeed struct{ articles []news.Article }

func (f stubFeed) Articles(context.Context, string) []news.Article { return f.articles }

type fakeLLM struct {
	notes string
	err   error
	reqs  []*llm.ChatRequest
}

func (f *fakeLLM) Chat(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("unused")
}

func (f *fakeLLM) ChatStructured(_ context.Context, req *llm.ChatRequest, target interface{}) error {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.notes), target)
}

const notesJSON = `{"title":"Markets Rally","vocabulary":[{"word":"rally","meaning":"反弹"}],
"key_sentences":[{"english":"Stocks rose.","chinese":"股市上涨。","explanation":"rise 的过去式"}],"summary":"股市反弹"}`

var (
	nytArticle       = news.Article{Source: news.SourceNYT, Title: "Markets Rally", Abstract: "Stocks rose.", URL: "https://www.nytimes.com/a"}
	economistArticle = news.Article{Source: news.SourceEconomist, Title: "Industrial Policy", Abstract: "Governments steer."}
)

func at() time.Time { return time.Date(2025, 1, 10, 0, 30, 0, 0, time.UTC) }

func TestBuildStudiesEveryArticle(t *testing.T) {
	model := &fakeLLM{notes: notesJSON}
	b := NewBuilder(stubFeed{[]news.Article{nytArticle, economistArticle}}, model, WithModel("news"), WithClock(at))

	d, err := b.Build(context.Background(), news.SourceAll)
	require.NoError(t, err)
	require.Len(t, d.Readings, 2)
	require.Len(t, model.reqs, 2)
	assert.Equal(t, "news", model.reqs[0].Model)
	assert.InDelta(t, 0.3, *model.reqs[0].Temperature, 1e-9)
	assert.Contains(t, model.reqs[1].Messages[0].Content, "来源: 经济学人")

	r := d.Readings[0]
	assert.True(t, r.Studied)
	assert.Equal(t, []Word{{Word: "rally", Meaning: "反弹"}}, r.Vocabulary)
	assert.Equal(t, "股市反弹", r.Summary)
	assert.Equal(t, "📰 每日新闻精读 - 2025年01月10日", d.Title())
}

func TestStudyFallsBackToAbstract(t *testing.T) {
	tests := []struct {
		name   string
		client llm.LLMClient
	}{
		{"no model", nil},
		{"model error", &fakeLLM{err: errors.New("timeout")}},
		{"empty summary", &fakeLLM{notes: `{"title":"x","vocabulary":[],"key_sentences":[],"summary":" "}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewBuilder(stubFeed{}, tt.client).Study(context.Background(), nytArticle)
			assert.Equal(t, "Stocks rose.", r.Summary)
			assert.Empty(t, r.Vocabulary)
		})
	}
}

func TestBuildWithoutArticles(t *testing.T) {
	_, err := NewBuilder(stubFeed{}, nil).Build(context.Background(), news.SourceNYT)
	require.ErrorIs(t, err, ErrNoArticles)
}

func TestRender(t *testing.T) {
	d, err := NewBuilder(stubFeed{[]news.Article{nytArticle, economistArticle}}, &fakeLLM{notes: notesJSON}, WithClock(at)).
		Build(context.Background(), news.SourceAll)
	require.NoError(t, err)

	text := Text(d)
	assert.True(t, strings.HasPrefix(text, "📰 每日新闻精读 - 2025年01月10日"))
	assert.Contains(t, text, "来源：纽约时报 + 经济学人")
	assert.Contains(t, text, "生成时间：2025-01-10 08:30", "Beijing time")
	assert.Contains(t, text, "【1. Markets Rally】")
	assert.Contains(t, text, "📚 重点单词:\n  • rally: 反弹")
	assert.Contains(t, text, "💬 关键句子:\n  Stocks rose.\n  → 股市上涨。\n  💡 rise 的过去式")
	assert.Contains(t, text, "📋 总结: 股市反弹")

	card := Card(d)
	assert.Equal(t, d.Title(), card.Header.Title.Content)
	require.Len(t, card.Elements, 5, "sources, then a divider and a block per article")
	assert.Contains(t, card.Elements[2].Text.Content, "**1. [Markets Rally](https://www.nytimes.com/a)**")

	assert.Equal(t, "1. Markets Rally\n2. Industrial Policy", Headlines(d))
}

type fakeSender struct {
	fail  map[string]bool
	cards map[string]*feishu.Card
}

func (s *fakeSender) SendText(context.Context, string, string) error { return nil }

func (s *fakeSender) SendCard(_ context.Context, openID string, card *feishu.Card) error {
	if s.fail[openID] {
		return errors.New("rejected")
	}
	if s.cards == nil {
		s.cards = map[string]*feishu.Card{}
	}
	s.cards[openID] = card
	return nil
}

func TestPush(t *testing.T) {
	d := &Digest{GeneratedAt: at(), Readings: []Reading{{Article: nytArticle, Summary: "s"}}}
	sender := &fakeSender{fail: map[string]bool{"ou_bad": true}}

	delivered, err := Push(context.Background(), sender, []string{"ou_1", "", "ou_bad", "ou_2"}, d)
	require.ErrorContains(t, err, "ou_bad")
	assert.Equal(t, []string{"ou_1", "ou_2"}, delivered)
	assert.Len(t, sender.cards, 2)
}
