package skills

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/feishu"
	"feishu-assistant/pkg/search"
)

type githubArgs struct {
	Keywords string `arg:"keywords,default=ai-agent"`
	Days     int    `arg:"days,default=7,range=[1:30]"`
	Limit    int    `arg:"limit,default=5,range=[1:10]"`
}

// SearchGitHub lists popular repositories recently pushed for a keyword.
type SearchGitHub struct{ deps Deps }

func (s *SearchGitHub) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.SearchGitHub,
		Description: "搜索 GitHub 上近期活跃的热门项目",
		Examples:    []string{"搜索 GitHub 上的 AI Agent 项目", "最近有什么热门的 rust 项目"},
		Params: []skill.Param{
			{Name: "keywords", Type: skill.TypeString, Default: "ai-agent", Description: "搜索关键词"},
			{Name: "days", Type: skill.TypeInteger, Default: "7", Description: "最近多少天内有更新，1 到 30"},
			{Name: "limit", Type: skill.TypeInteger, Default: "5", Description: "返回数量，1 到 10"},
		},
	}
}

func (s *SearchGitHub) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	var args githubArgs
	if err := skill.Bind(inv.Args, &args); err != nil {
		return skill.Fail("❓ 参数有误，天数范围 1-30，例如: /github ai-agent 7", err)
	}
	code := cache.SearchCode("github", args.Keywords, strconv.Itoa(args.Days), strconv.Itoa(args.Limit))
	repos, err := cache.GetOrFetch(ctx, s.deps.Cache, cache.KindSearch, "", code, func(ctx context.Context) ([]search.Repo, error) {
		return s.deps.GitHub.SearchRepos(ctx, args.Keywords, args.Days, args.Limit)
	})
	if err != nil {
		if errors.Is(err, search.ErrRateLimited) {
			return skill.Fail("⚠️ GitHub API 访问受限，请稍后再试", err)
		}
		return skill.Fail("❌ GitHub 搜索失败，请稍后再试", err)
	}
	title := fmt.Sprintf("🔥 GitHub 热门项目: %s (近 %d 天)", args.Keywords, args.Days)
	if len(repos) == 0 {
		return skill.OK(title + "\n\n没有找到符合条件的项目")
	}

	items := make([]string, 0, len(repos))
	for i, r := range repos {
		var b strings.Builder
		fmt.Fprintf(&b, "%d. **[%s](%s)** ⭐ %d", i+1, r.FullName, r.URL, r.Stars)
		if r.Language != "" {
			fmt.Fprintf(&b, " | %s", r.Language)
		}
		if r.Description != "" {
			fmt.Fprintf(&b, "\n%s", clip(r.Description, 120))
		}
		items = append(items, b.String())
	}
	text := make([]string, 0, len(repos))
	for i, r := range repos {
		text = append(text, fmt.Sprintf("%d. %s ⭐%d\n   %s\n   %s", i+1, r.FullName, r.Stars, clip(r.Description, 120), r.URL))
	}
	card := feishu.NewCard(title, "purple")
	card.Markdown(strings.Join(items, "\n\n"))
	return skill.Result{Success: true, Message: title + "\n\n" + strings.Join(text, "\n\n"), Card: card, Data: repos}
}

type paperArgs struct {
	Topic string `arg:"topic,default=AI"`
	Limit int    `arg:"limit,default=5,range=[1:10]"`
}

// SearchPapers lists the newest arXiv submissions on a topic.
type SearchPapers struct{ deps Deps }

func (s *SearchPapers) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.SearchPapers,
		Description: "搜索 arXiv 上最新的学术论文",
		Examples:    []string{"找一下关于 Transformer 的论文", "最新的强化学习论文"},
		Params: []skill.Param{
			{Name: "topic", Type: skill.TypeString, Default: "AI", Description: "论文主题"},
			{Name: "limit", Type: skill.TypeInteger, Default: "5", Description: "返回数量，1 到 10"},
		},
	}
}

func (s *SearchPapers) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	var args paperArgs
	if err := skill.Bind(inv.Args, &args); err != nil {
		return skill.Fail("❓ 参数有误，数量范围 1-10，例如: /paper transformer", err)
	}
	code := cache.SearchCode("arxiv", args.Topic, strconv.Itoa(args.Limit))
	papers, err := cache.GetOrFetch(ctx, s.deps.Cache, cache.KindSearch, "", code, func(ctx context.Context) ([]search.Paper, error) {
		return s.deps.Arxiv.SearchPapers(ctx, args.Topic, args.Limit)
	})
	if err != nil {
		if errors.Is(err, search.ErrRateLimited) {
			return skill.Fail("⚠️ arXiv 服务繁忙，请稍后再试", err)
		}
		return skill.Fail("❌ 论文搜索失败，请稍后再试", err)
	}
	title := fmt.Sprintf("📚 最新论文: %s", args.Topic)
	if len(papers) == 0 {
		return skill.OK(title + "\n\n没有找到相关论文")
	}

	items := make([]string, 0, len(papers))
	text := make([]string, 0, len(papers))
	for i, p := range papers {
		authors := strings.Join(p.Authors, ", ")
		if len(p.Authors) > 3 {
			authors = strings.Join(p.Authors[:3], ", ") + " 等"
		}
		date := ""
		if !p.Published.IsZero() {
			date = p.Published.Format("2006-01-02")
		}
		items = append(items, fmt.Sprintf("%d. **[%s](%s)**\n👤 %s | 📅 %s\n%s", i+1, p.Title, p.URL, authors, date, clip(p.Summary, 150)))
		text = append(text, fmt.Sprintf("%d. %s\n   %s | %s\n   %s", i+1, p.Title, authors, date, p.URL))
	}
	card := feishu.NewCard(title, "turquoise")
	card.Markdown(strings.Join(items, "\n\n"))
	return skill.Result{Success: true, Message: title + "\n\n" + strings.Join(text, "\n\n"), Card: card, Data: papers}
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
