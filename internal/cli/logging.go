package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"feishu-assistant/internal/config"
	"feishu-assistant/pkg/confkit"
)

// ConfigSummaryLines describes the effective assistant config without
// printing any secret values.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Listen: %s:%d", cfg.Host, cfg.Port),
		fmt.Sprintf("Store: %s", cfg.Store.Driver),
		fmt.Sprintf("Cache backend: %s (max %d entries)", cfg.Cache.Backend, cfg.Cache.MaxEntries),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("Feishu app: %s", presence(cfg.Feishu.AppID != "" && cfg.Feishu.AppSecret != "")),
		fmt.Sprintf("Feishu encryption: %s", presence(cfg.Feishu.EncryptKey != "")),
		fmt.Sprintf("Feishu events: %s", orNone(cfg.Feishu.Mode)),
		fmt.Sprintf("NYT API key: %s", presence(cfg.News.NYTAPIKey != "")),
		fmt.Sprintf("GitHub token: %s", presence(cfg.Search.GitHubToken != "")),
		fmt.Sprintf("Session: %d turns, idle %s, sweep %s", cfg.Session.MaxHistory, cfg.SessionIdleTTL(), cfg.SessionSweepInterval()),
		fmt.Sprintf("Handling: %d workers, timeout %s", cfg.Handling.Workers, cfg.HandlingTimeout()),
		sectionLine("LLM config", cfg.LLM),
		sectionLine("Market config", cfg.Market),
	}
	if m := cfg.Market.Value; m != nil {
		lines = append(lines, fmt.Sprintf("Market roles: quote=%s fallback=%s index=%s fundamentals=%s",
			m.Quote, orNone(m.QuoteFallback), m.Index, orNone(m.Fundamentals)))
	}
	return lines
}

// LogConfigSummary writes one log line per summary entry at startup.
func LogConfigSummary(cfg *config.Config) {
	for i, line := range ConfigSummaryLines(cfg) {
		logx.Infow("config", logx.Field("n", i+1), logx.Field("line", line))
	}
}

func presence(ok bool) string {
	if ok {
		return "set"
	}
	return "unset"
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: file %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	}
	return fmt.Sprintf("%s: %s", name, presence(false))
}
