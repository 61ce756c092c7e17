package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/internal/config"
	digest "feishu-assistant/internal/news"
	"feishu-assistant/pkg/news"
)

func TestRecipients(t *testing.T) {
	cfg := &config.Config{News: config.NewsConf{Recipients: []string{"ou_1", " ou_2 ", "ou_1", ""}}}

	cases := []struct {
		name  string
		flags flags
		want  []string
	}{
		{"configured", flags{}, []string{"ou_1", "ou_2"}},
		{"override", flags{users: []string{"ou_9", "ou_9"}}, []string{"ou_9"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.flags.recipients(cfg))
		})
	}
}

func TestUnknownSource(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--source", "wsj"})
	cmd.SetOut(discard{})
	cmd.SetErr(discard{})
	assert.ErrorContains(t, cmd.Execute(), "unknown source")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestJournalRecord(t *testing.T) {
	d := &digest.Digest{Readings: []digest.Reading{
		{Article: news.Article{Source: news.SourceNYT, Title: "Markets Rally", URL: "https://www.nytimes.com/a"}, Studied: true},
		{Article: news.Article{Source: news.SourceEconomist, Title: "Industrial Policy"}},
	}}
	rec := journalRecord(d, []string{"ou_1", "ou_2"}, []string{"ou_1"}, errors.New("send digest to ou_2: boom"))

	assert.Equal(t, journalMode, rec.Mode)
	assert.False(t, rec.Success)
	assert.Equal(t, "send digest to ou_2: boom", rec.ErrorMessage)
	require.Len(t, rec.Articles, 2)
	assert.True(t, rec.Articles[0].Studied)
	assert.False(t, rec.Articles[1].Studied)
	require.Len(t, rec.Recipients, 2)
	assert.True(t, rec.Recipients[0].Delivered)
	assert.False(t, rec.Recipients[1].Delivered)
}
