package skills

import (
	"context"
	"errors"
	"strings"

	"feishu-assistant/internal/cache"
	digest "feishu-assistant/internal/news"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/news"
)

// NewsBuilder assembles the reading digest of a source.
type NewsBuilder interface {
	Build(ctx context.Context, source string) (*digest.Digest, error)
}

type newsArgs struct {
	Source string `arg:"source,default=all,options=nyt|economist|all"`
}

// ReadNews returns today's English reading digest: vocabulary, key sentences
// and a summary for each picked article.
type ReadNews struct{ deps Deps }

func (s *ReadNews) Schema() skill.Schema {
	return skill.Schema{
		Name:        skill.ReadNews,
		Description: "获取纽约时报和经济学人精选新闻，提供英文原文、重点单词和中文讲解",
		Examples:    []string{"今天的新闻精读", "来点经济学人的文章练练英语"},
		Params: []skill.Param{
			{Name: "source", Type: skill.TypeString, Enum: []string{news.SourceNYT, news.SourceEconomist, news.SourceAll}, Default: news.SourceAll, Description: "新闻来源"},
		},
	}
}

func (s *ReadNews) Execute(ctx context.Context, inv skill.Invocation) skill.Result {
	if s.deps.News == nil {
		return skill.Failf("⚠️ 新闻精读未启用")
	}
	var args newsArgs
	if err := skill.Bind(map[string]string{"source": strings.ToLower(inv.Arg("source"))}, &args); err != nil {
		return skill.Fail("❓ 支持的来源: nyt、economist、all", err)
	}
	day := s.deps.now().In(markethours.Location()).Format("20060102")
	d, err := cache.GetOrFetch(ctx, s.deps.Cache, cache.KindNews, "", cache.SearchCode("digest", args.Source, day), func(ctx context.Context) (*digest.Digest, error) {
		return s.deps.News.Build(ctx, args.Source)
	})
	if err != nil {
		if errors.Is(err, digest.ErrNoArticles) {
			return skill.Fail("📭 今天没有获取到新闻", err)
		}
		return skill.Fail("❌ 新闻获取失败，请稍后再试", err)
	}
	return skill.Result{Success: true, Message: digest.Text(d), Card: digest.Card(d), Data: d}
}
