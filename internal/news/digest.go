// Package news turns the day's articles into an English reading digest:
// vocabulary, key sentences and a Chinese summary per article.
package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/pkg/llm"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/news"
)

// ErrNoArticles is returned when no source produced an article.
var ErrNoArticles = errors.New("news: no articles")

const studyPrompt = `请分析以下英文文章，生成精读内容：

标题: %s
摘要: %s
来源: %s

只返回JSON: {"title": "英文标题", "vocabulary": [{"word": "单词", "meaning": "中文含义"}], "key_sentences": [{"english": "英文句子", "chinese": "中文翻译", "explanation": "讲解"}], "summary": "文章要点总结（中文）"}
请选择3-5个重点单词和3个关键句子。`

// Word is a vocabulary entry.
type Word struct {
	Word    string `msgpack:"word" json:"word"`
	Meaning string `msgpack:"meaning" json:"meaning"`
}

// Sentence is a key sentence with its translation.
type Sentence struct {
	English     string `msgpack:"english" json:"english"`
	Chinese     string `msgpack:"chinese" json:"chinese"`
	Explanation string `msgpack:"explanation" json:"explanation"`
}

// Reading is the study notes of one article. Studied is false when the
// model was unavailable and Summary holds the abstract.
type Reading struct {
	Article      news.Article `msgpack:"article" json:"article"`
	Vocabulary   []Word       `msgpack:"vocabulary" json:"vocabulary"`
	KeySentences []Sentence   `msgpack:"key_sentences" json:"key_sentences"`
	Summary      string       `msgpack:"summary" json:"summary"`
	Studied      bool         `msgpack:"studied" json:"studied"`
}

// Digest is one day's readings.
type Digest struct {
	Source      string    `msgpack:"source" json:"source"`
	GeneratedAt time.Time `msgpack:"generated_at" json:"generated_at"`
	Readings    []Reading `msgpack:"readings" json:"readings"`
}

// Feed supplies the articles of a source.
type Feed interface {
	Articles(ctx context.Context, source string) []news.Article
}

// Builder assembles digests.
type Builder struct {
	feed  Feed
	llm   llm.LLMClient
	model string
	now   func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithModel selects the model alias used for study notes.
func WithModel(alias string) Option { return func(b *Builder) { b.model = alias } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

// NewBuilder returns a Builder. client may be nil, in which case readings
// carry only the abstract.
func NewBuilder(feed Feed, client llm.LLMClient, opts ...Option) *Builder {
	b := &Builder{feed: feed, llm: client, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build fetches the articles of source and studies each one in order.
func (b *Builder) Build(ctx context.Context, source string) (*Digest, error) {
	articles := b.feed.Articles(ctx, source)
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	d := &Digest{Source: source, GeneratedAt: b.now(), Readings: make([]Reading, 0, len(articles))}
	for _, a := range articles {
		d.Readings = append(d.Readings, b.Study(ctx, a))
	}
	return d, nil
}

type studyNotes struct {
	Title        string     `json:"title"`
	Vocabulary   []Word     `json:"vocabulary"`
	KeySentences []Sentence `json:"key_sentences"`
	Summary      string     `json:"summary"`
}

// Study asks the model for notes on a. Failures degrade to the abstract.
func (b *Builder) Study(ctx context.Context, a news.Article) Reading {
	plain := Reading{Article: a, Summary: a.Abstract}
	if b.llm == nil {
		return plain
	}
	var notes studyNotes
	err := b.llm.ChatStructured(ctx, &llm.ChatRequest{
		Model:       b.model,
		Messages:    []llm.Message{llm.User(fmt.Sprintf(studyPrompt, a.Title, a.Abstract, news.Label(a.Source)))},
		Temperature: llm.Float(0.3),
	}, &notes)
	if err != nil {
		logx.WithContext(ctx).Infof("news: study %q: %v", a.Title, err)
		return plain
	}
	r := Reading{Article: a, Vocabulary: notes.Vocabulary, KeySentences: notes.KeySentences, Summary: strings.TrimSpace(notes.Summary), Studied: true}
	if r.Summary == "" {
		r.Summary = a.Abstract
	}
	return r
}

// Date is the digest day in Beijing time, e.g. 2025年01月10日.
func (d *Digest) Date() string {
	return d.GeneratedAt.In(markethours.Location()).Format("2006年01月02日")
}

// Title is the digest headline.
func (d *Digest) Title() string {
	return "📰 每日新闻精读 - " + d.Date()
}
