// Package skills holds the user-facing skills the bot dispatches to.
package skills

import (
	"context"
	"strings"
	"time"

	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/portfolio"
	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/internal/tracker"
	"feishu-assistant/pkg/llm"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/search"
)

// RepoSearcher is the GitHub side of pkg/search.
type RepoSearcher interface {
	SearchRepos(ctx context.Context, keywords string, days, limit int) ([]search.Repo, error)
}

// PaperSearcher is the arXiv side of pkg/search.
type PaperSearcher interface {
	SearchPapers(ctx context.Context, topic string, limit int) ([]search.Paper, error)
}

// Deps are the collaborators shared by the skills. LLM and News may be nil.
type Deps struct {
	Sources   *market.Sources
	Cache     *cache.Cache
	Ledger    portfolio.Ledger
	Tracker   *tracker.Tracker
	GitHub    RepoSearcher
	Arxiv     PaperSearcher
	News      NewsBuilder
	LLM       llm.LLMClient
	ChatModel string
	Sessions  *session.Manager
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RegisterAll registers every built-in skill on reg.
func RegisterAll(reg *skill.Registry, d Deps) error {
	all := []skill.Skill{
		&AnalyzeStock{deps: d},
		&QueryMarket{deps: d},
		&ManagePortfolio{deps: d},
		&TrackPortfolio{deps: d},
		&SearchGitHub{deps: d},
		&SearchPapers{deps: d},
		&ReadNews{deps: d},
		&Chat{deps: d},
		&Help{registry: reg},
		&Session{deps: d},
	}
	for _, s := range all {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// upper copies args with the named values upper-cased, so enum arguments
// coming from the LLM in any case bind against upper-case options.
func upper(args map[string]string, keys ...string) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, k := range keys {
		if v, ok := out[k]; ok {
			out[k] = strings.ToUpper(strings.TrimSpace(v))
		}
	}
	return out
}

var (
	marketNames = map[string]string{"US": "美股", "HK": "港股", "CN": "A股"}
	marketFlags = map[string]string{"US": "🇺🇸 美股", "HK": "🇭🇰 港股", "CN": "🇨🇳 A股"}
)
