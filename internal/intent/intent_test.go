package intent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/internal/session"
	"feishu-assistant/internal/skill"
	"feishu-assistant/pkg/llm"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
	last  *llm.ChatRequest
}

func (f *fakeLLM) Chat(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeLLM) ChatStructured(_ context.Context, req *llm.ChatRequest, target interface{}) error {
	f.calls++
	f.last = req
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), target)
}

type stub struct{ schema skill.Schema }

func (s stub) Schema() skill.Schema                                   { return s.schema }
func (s stub) Execute(context.Context, skill.Invocation) skill.Result { return skill.OK("") }

func registry() *skill.Registry {
	r := skill.NewRegistry()
	r.MustRegister(
		stub{skill.Schema{Name: skill.AnalyzeStock, Description: "个股分析", Params: []skill.Param{
			{Name: "symbol", Type: skill.TypeString, Required: true},
			{Name: "market", Type: skill.TypeString, Enum: []string{"AUTO", "US", "HK", "CN"}},
		}}},
		stub{skill.Schema{Name: skill.QueryMarket, Description: "大盘行情"}},
		stub{skill.Schema{Name: skill.Chat, Description: "闲聊", Params: []skill.Param{
			{Name: "message", Type: skill.TypeString, Required: true},
		}}},
	)
	return r
}

func newRecognizer(t *testing.T, client llm.LLMClient) *Recognizer {
	t.Helper()
	r, err := NewRecognizer(registry(), client)
	require.NoError(t, err)
	return r
}

func TestCommandsNeverCallLLM(t *testing.T) {
	fake := &fakeLLM{}
	r := newRecognizer(t, fake)
	ctx := context.Background()

	cases := []struct {
		text  string
		skill string
		args  map[string]string
	}{
		{"/market US", skill.QueryMarket, map[string]string{"market": "US"}},
		{"/m", skill.QueryMarket, map[string]string{"market": "US"}},
		{"/MARKET all", skill.QueryMarket, map[string]string{"market": "ALL"}},
		{"/stock 茅台", skill.AnalyzeStock, map[string]string{"symbol": "茅台"}},
		{"/s 700 hk", skill.AnalyzeStock, map[string]string{"symbol": "700", "market": "HK"}},
		{"/github", skill.SearchGitHub, map[string]string{"keywords": "ai-agent"}},
		{"/gh rust agent 14", skill.SearchGitHub, map[string]string{"keywords": "rust agent", "days": "14"}},
		{"/paper", skill.SearchPapers, map[string]string{"topic": "AI"}},
		{"/arxiv large language models", skill.SearchPapers, map[string]string{"topic": "large language models"}},
		{"/news", skill.ReadNews, map[string]string{"source": "all"}},
		{"/新闻 NYT", skill.ReadNews, map[string]string{"source": "nyt"}},
		{"/chat 你好 世界", skill.Chat, map[string]string{"message": "你好 世界"}},
		{"/持仓", skill.ManagePortfolio, map[string]string{"action": "query"}},
		{"/buy 茅台 100 1500", skill.ManagePortfolio, map[string]string{"action": "buy", "symbol": "茅台", "shares": "100", "price": "1500"}},
		{"/sell AAPL 5 190.5 us", skill.ManagePortfolio, map[string]string{"action": "sell", "symbol": "AAPL", "shares": "5", "price": "190.5", "market": "US"}},
		{"/reset", skill.ManagePortfolio, map[string]string{"action": "reset"}},
		{"/track", skill.TrackPortfolio, map[string]string{}},
		{"/track hk", skill.TrackPortfolio, map[string]string{"market": "HK"}},
		{"/track History", skill.TrackPortfolio, map[string]string{"action": "history"}},
		{"/help", skill.Help, map[string]string{}},
		{"/clear", skill.Session, map[string]string{"action": "clear"}},
		{"/status", skill.Session, map[string]string{"action": "status"}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := r.Resolve(ctx, tc.text, nil)
			assert.Equal(t, SourceCommand, got.Source)
			assert.Equal(t, tc.skill, got.Skill)
			assert.Equal(t, tc.args, got.Args)
		})
	}
	assert.Zero(t, fake.calls)
}

func TestUnknownCommandAndBadArity(t *testing.T) {
	r := newRecognizer(t, &fakeLLM{})
	ctx := context.Background()

	got := r.Resolve(ctx, "/marketxyz", nil)
	assert.Equal(t, skill.Help, got.Skill)
	assert.Equal(t, "/marketxyz", got.Args["unknown"])

	got = r.Resolve(ctx, "/stock", nil)
	assert.Equal(t, skill.Help, got.Skill)
	assert.Contains(t, got.Hint, "/stock")
	assert.Equal(t, got.Hint, got.Args["hint"])

	got = r.Resolve(ctx, "/buy 茅台 100", nil)
	assert.Equal(t, skill.Help, got.Skill)
	assert.Contains(t, got.Hint, "/buy")

	got = r.Resolve(ctx, "/reset now", nil)
	assert.Equal(t, skill.Help, got.Skill)

	got = r.Resolve(ctx, "/news nyt economist", nil)
	assert.Equal(t, skill.Help, got.Skill)
	assert.Equal(t, "/news [nyt|economist|all]", got.Hint)
}

func TestNaturalLanguageShortcuts(t *testing.T) {
	fake := &fakeLLM{}
	r := newRecognizer(t, fake)
	ctx := context.Background()

	got := r.Resolve(ctx, "看看我的持仓", nil)
	assert.Equal(t, SourceKeyword, got.Source)
	assert.Equal(t, map[string]string{"action": "query"}, got.Args)

	got = r.Resolve(ctx, "Show my portfolio please", nil)
	assert.Equal(t, SourceKeyword, got.Source)

	got = r.Resolve(ctx, "买入茅台 100股 价格1500", nil)
	assert.Equal(t, SourceTrade, got.Source)
	assert.Equal(t, map[string]string{"action": "buy", "symbol": "茅台", "shares": "100", "price": "1500"}, got.Args)
	assert.Zero(t, fake.calls)
}

func TestResolveWithCaseChangingRunes(t *testing.T) {
	fake := &fakeLLM{reply: `{"skill":"chat","args":{"message":"x"}}`}
	r := newRecognizer(t, fake)
	ctx := context.Background()

	cases := []struct {
		text   string
		source Source
		args   map[string]string
	}{
		{"10 20 AAPL ȺȺȺȺȺ buy", SourceTrade, map[string]string{"action": "buy", "symbol": "AAPL", "shares": "10", "price": "20"}},
		{"ȺȺȺ MY PORTFOLIO", SourceKeyword, map[string]string{"action": "query"}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			var got Intent
			assert.NotPanics(t, func() { got = r.Resolve(ctx, tc.text, nil) })
			assert.Equal(t, tc.source, got.Source)
			assert.Equal(t, skill.ManagePortfolio, got.Skill)
			assert.Equal(t, tc.args, got.Args)
		})
	}
}

func TestPositionsNeedsOwnership(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"show my positions", true},
		{"what are short positions", false},
		{"explain positions in options trading", false},
		{"我的持仓", true},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, isPortfolioQuery(tc.text))
		})
	}
}

func TestParseTrade(t *testing.T) {
	cases := []struct {
		text string
		want Trade
		ok   bool
	}{
		{"买入茅台 100股 价格1500", Trade{"buy", "茅台", "100", "1500"}, true},
		{"卖出腾讯 50股 400元", Trade{"sell", "腾讯", "50", "400"}, true},
		{"买入AAPL 10股 180", Trade{"buy", "AAPL", "10", "180"}, true},
		{"记录买入宁德时代 200股 220.5元", Trade{"buy", "宁德时代", "200", "220.5"}, true},
		{"sell msft 3 410", Trade{"sell", "msft", "3", "410"}, true},
		{"买入茅台", Trade{}, false},
		{"今天天气 100 200", Trade{}, false},
		{"买入茅台 0股 1500", Trade{}, false},
		{"10 20 AAPL ȺȺȺȺȺ buy", Trade{"buy", "AAPL", "10", "20"}, true},
		{"SELL ȺȺ 5 12", Trade{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := ParseTrade(tc.text)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestLLMPath(t *testing.T) {
	fake := &fakeLLM{reply: `{"skill":"analyze_stock","parameters":{"symbol":"AAPL","market":"US"},"confidence":0.92,"reasoning":"个股"}`}
	r := newRecognizer(t, fake)
	history := []session.Turn{
		{Role: session.RoleUser, Content: "one"},
		{Role: session.RoleAssistant, Content: "two"},
		{Role: session.RoleUser, Content: "three"},
		{Role: session.RoleAssistant, Content: "four"},
	}

	got := r.Resolve(context.Background(), "苹果最近怎么样", history)
	assert.Equal(t, SourceLLM, got.Source)
	assert.Equal(t, skill.AnalyzeStock, got.Skill)
	assert.Equal(t, map[string]string{"symbol": "AAPL", "market": "US"}, got.Args)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)

	require.NotNil(t, fake.last)
	require.Len(t, fake.last.Messages, 2)
	assert.InDelta(t, 0.3, *fake.last.Temperature, 1e-9)
	assert.Contains(t, fake.last.Messages[0].Content, "- analyze_stock: 个股分析")
	assert.Contains(t, fake.last.Messages[0].Content, "取值 AUTO|US|HK|CN")
	user := fake.last.Messages[1].Content
	assert.Contains(t, user, "苹果最近怎么样")
	assert.NotContains(t, user, "one")
	assert.Contains(t, user, "four")
}

func TestLLMFallbacks(t *testing.T) {
	cases := []struct {
		name   string
		client llm.LLMClient
	}{
		{"no client", nil},
		{"llm error", &fakeLLM{err: errors.New("timeout")}},
		{"unknown skill", &fakeLLM{reply: `{"skill":"weather","parameters":{}}`}},
		{"invalid args", &fakeLLM{reply: `{"skill":"analyze_stock","parameters":{"market":"JP"}}`}},
		{"malformed", &fakeLLM{reply: `not json`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := NewRecognizer(registry(), tc.client)
			require.NoError(t, err)
			got := r.Resolve(context.Background(), "随便聊聊", nil)
			assert.Equal(t, SourceFallback, got.Source)
			assert.Equal(t, skill.Chat, got.Skill)
			assert.Equal(t, "随便聊聊", got.Args["message"])
		})
	}
}

func TestLLMChatGetsMessage(t *testing.T) {
	r := newRecognizer(t, &fakeLLM{reply: `{"skill":"chat","parameters":{},"confidence":3}`})
	got := r.Resolve(context.Background(), "讲个笑话", nil)
	assert.Equal(t, SourceLLM, got.Source)
	assert.Equal(t, "讲个笑话", got.Args["message"])
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
}
