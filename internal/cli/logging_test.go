package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"feishu-assistant/internal/config"
	marketpkg "feishu-assistant/pkg/market"
)

func TestConfigSummaryLines(t *testing.T) {
	var cfg config.Config
	cfg.Host = "0.0.0.0"
	cfg.Port = 8888
	cfg.Feishu.AppID = "cli_a"
	cfg.Feishu.AppSecret = "s3cret"
	cfg.Feishu.Mode = config.FeishuModeWebhook
	cfg.News.NYTAPIKey = "nyt-key"
	cfg.LLM.File = "llm.yaml"
	cfg.Market.Value = &marketpkg.Config{Quote: "tencent", Index: "yahoo"}

	lines := ConfigSummaryLines(&cfg)
	joined := strings.Join(lines, "\n")

	assert.Contains(t, joined, "Listen: 0.0.0.0:8888")
	assert.Contains(t, joined, "Feishu app: set")
	assert.Contains(t, joined, "Feishu encryption: unset")
	assert.Contains(t, joined, "Feishu events: webhook")
	assert.Contains(t, joined, "NYT API key: set")
	assert.NotContains(t, joined, "nyt-key")
	assert.Contains(t, joined, "LLM config: file llm.yaml")
	assert.Contains(t, joined, "Market config: inline")
	assert.Contains(t, joined, "quote=tencent fallback=- index=yahoo fundamentals=-")
	assert.NotContains(t, joined, "s3cret")
}

func TestConfigSummaryLinesNil(t *testing.T) {
	assert.Equal(t, []string{"Configuration: <nil>"}, ConfigSummaryLines(nil))
}
