package svc

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/threading"

	"feishu-assistant/internal/bot"
	"feishu-assistant/internal/cache"
	"feishu-assistant/internal/config"
	"feishu-assistant/internal/intent"
	"feishu-assistant/internal/model"
	digest "feishu-assistant/internal/news"
	"feishu-assistant/internal/portfolio"
	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/internal/skills"
	"feishu-assistant/internal/tracker"
	"feishu-assistant/pkg/feishu"
	llmpkg "feishu-assistant/pkg/llm"
	marketpkg "feishu-assistant/pkg/market"
	_ "feishu-assistant/pkg/market/finnhub"
	_ "feishu-assistant/pkg/market/tencent"
	_ "feishu-assistant/pkg/market/yahoo"
	"feishu-assistant/pkg/news"
	"feishu-assistant/pkg/search"
	"feishu-assistant/pkg/valuation"
)

type ServiceContext struct {
	Config config.Config

	DBConn sqlx.SqlConn

	Cache  *cache.Cache
	Market *marketpkg.Sources
	LLM    llmpkg.LLMClient
	GitHub *search.GitHub
	Arxiv  *search.Arxiv
	// News builds the reading digest for the read_news skill and the
	// newsdigest job.
	News   *digest.Builder
	Feishu *feishu.Client
	// Events routes SDK callbacks to Deliver for both transports.
	Events  *dispatcher.EventDispatcher
	Ledger  portfolio.Ledger
	Tracker *tracker.Tracker

	Sessions   *session.Manager
	Registry   *skill.Registry
	Recognizer *intent.Recognizer
	Dispatcher *bot.Dispatcher
	// Runner bounds concurrently handled messages.
	Runner *threading.TaskRunner
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc, err := Build(context.Background(), c)
	if err != nil {
		log.Fatalf("failed to build service context: %v", err)
	}
	return svc
}

// Build wires every component from c. The store schema is migrated on the way.
func Build(ctx context.Context, c config.Config) (*ServiceContext, error) {
	if !c.Market.Configured() {
		return nil, errors.New("svc: market config is required")
	}
	svc := &ServiceContext{
		Config: c,
		Runner: threading.NewTaskRunner(max(c.Handling.Workers, 1)),
	}

	conn, err := model.NewConn(c.Store.Driver, c.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := model.Migrate(ctx, conn); err != nil {
		return nil, fmt.Errorf("svc: migrate store: %w", err)
	}
	svc.DBConn = conn

	if svc.Cache, err = buildCache(c, conn); err != nil {
		return nil, err
	}
	if svc.Market, err = c.Market.Value.Build(); err != nil {
		return nil, fmt.Errorf("svc: build market sources: %w", err)
	}
	svc.LLM = buildLLM(c)

	svc.GitHub = search.NewGitHub(searchOptions(c, c.Search.GitHubBaseURL,
		search.WithToken(c.Search.GitHubToken),
		search.WithRateLimit(c.Search.GitHubRateLimit),
	)...)
	svc.Arxiv = search.NewArxiv(searchOptions(c, c.Search.ArxivBaseURL)...)
	svc.News = buildNews(c, svc.LLM)

	feishuOpts := []feishu.Option{feishu.WithTimeout(c.FeishuTimeout())}
	if c.Feishu.BaseURL != "" {
		feishuOpts = append(feishuOpts, feishu.WithBaseURL(c.Feishu.BaseURL))
	}
	svc.Feishu = feishu.NewClient(c.Feishu.AppID, c.Feishu.AppSecret, feishuOpts...)
	svc.Events = feishu.NewEventDispatcher(c.Feishu.VerificationToken, c.Feishu.EncryptKey, svc.Deliver)

	svc.Ledger = portfolio.NewSQLLedger(conn)
	trackerOpts := []tracker.Option{
		tracker.WithNotifier(svc.Feishu),
		tracker.WithThresholds(valuation.Thresholds{Margin: c.Tracker.MarginThreshold, Price: c.Tracker.PriceThreshold}),
	}
	if svc.Market.Fundamentals != nil {
		trackerOpts = append(trackerOpts, tracker.WithFundamentals(svc.Market.Fundamentals))
	}
	if c.Tracker.EstimateWithLLM && svc.LLM != nil {
		trackerOpts = append(trackerOpts, tracker.WithEstimator(svc.LLM, ""))
	}
	svc.Tracker = tracker.New(svc.Ledger, svc.Market.Quotes, svc.Cache, trackerOpts...)

	svc.Sessions = session.NewManager(model.NewSessionsModel(conn),
		session.WithMaxHistory(c.Session.MaxHistory),
		session.WithIdleTTL(c.SessionIdleTTL()),
	)

	svc.Registry = skill.NewRegistry()
	err = skills.RegisterAll(svc.Registry, skills.Deps{
		Sources:   svc.Market,
		Cache:     svc.Cache,
		Ledger:    svc.Ledger,
		Tracker:   svc.Tracker,
		GitHub:    svc.GitHub,
		Arxiv:     svc.Arxiv,
		News:      svc.News,
		LLM:       svc.LLM,
		ChatModel: modelAlias(c, "chat"),
		Sessions:  svc.Sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("svc: register skills: %w", err)
	}
	if svc.Recognizer, err = intent.NewRecognizer(svc.Registry, svc.LLM, intent.WithModel(modelAlias(c, "intent"))); err != nil {
		return nil, err
	}
	svc.Dispatcher, err = bot.NewDispatcher(svc.Sessions, svc.Recognizer, svc.Registry, svc.Feishu,
		bot.WithTimeout(c.HandlingTimeout()),
		bot.WithDedupCapacity(c.Dedup.Capacity),
	)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func buildCache(c config.Config, conn sqlx.SqlConn) (*cache.Cache, error) {
	policy := cache.NewTTLPolicy(c.Cache.TTL)
	var backend cache.Backend
	switch c.Cache.Backend {
	case config.CacheBackendRedis:
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("svc: connect redis: %w", err)
		}
		backend = cache.NewRedisBackend(rds)
	case config.CacheBackendStore:
		backend = cache.NewStoreBackend(model.NewCacheEntriesModel(conn))
	default:
		mem, err := cache.NewMemoryBackend(c.Cache.MaxEntries, policy.Retention())
		if err != nil {
			return nil, fmt.Errorf("svc: memory cache: %w", err)
		}
		backend = mem
	}
	return cache.New(backend, policy), nil
}

// buildLLM returns nil when neither the llm section nor the LLM_* variables
// configure a client; the assistant then runs on commands and keywords only.
func buildLLM(c config.Config) llmpkg.LLMClient {
	cfg := c.LLM.Value
	if cfg == nil {
		var err error
		if cfg, err = llmpkg.FromEnv(); err != nil {
			logx.Infof("llm disabled: %v", err)
			return nil
		}
	}
	client, err := llmpkg.NewClient(cfg)
	if err != nil {
		logx.Errorf("llm disabled: %v", err)
		return nil
	}
	return client
}

// modelAlias returns alias when the llm config defines it, else "" for the
// default model.
func modelAlias(c config.Config, alias string) string {
	if c.LLM.Value == nil {
		return ""
	}
	if _, ok := c.LLM.Value.Model(alias); ok {
		return alias
	}
	return ""
}

func searchOptions(c config.Config, baseURL string, extra ...search.Option) []search.Option {
	opts := []search.Option{search.WithTimeout(c.SearchTimeout()), search.WithMaxRetries(2)}
	if baseURL != "" {
		opts = append(opts, search.WithBaseURL(baseURL))
	}
	return append(opts, extra...)
}

// buildNews wires the digest builder. Without an NYT key the feed serves the
// preset picks.
func buildNews(c config.Config, client llmpkg.LLMClient) *digest.Builder {
	var nyt news.TopStories
	if c.News.NYTAPIKey != "" {
		opts := []news.Option{news.WithTimeout(c.NewsTimeout())}
		if c.News.NYTBaseURL != "" {
			opts = append(opts, news.WithBaseURL(c.News.NYTBaseURL))
		}
		nyt = news.NewNYT(c.News.NYTAPIKey, opts...)
	}
	feed := news.NewFeed(nyt, c.News.Limit, nil)
	return digest.NewBuilder(feed, client, digest.WithModel(modelAlias(c, "news")))
}
