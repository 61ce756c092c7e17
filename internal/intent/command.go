package intent

import (
	"strconv"
	"strings"

	"feishu-assistant/internal/skill"
)

const (
	defaultGitHubKeywords = "ai-agent"
	defaultPaperTopic     = "AI"
	defaultMarket         = "US"
)

// command is one slash command. build receives the arguments after the
// command word and returns false when their count is wrong.
type command struct {
	names  []string
	syntax string
	build  func(args []string) (string, map[string]string, bool)
}

var commands = []command{
	{
		names:  []string{"/market", "/m"},
		syntax: "/market [US|HK|CN|ALL]",
		build: func(args []string) (string, map[string]string, bool) {
			if len(args) > 1 {
				return "", nil, false
			}
			tag := defaultMarket
			if len(args) == 1 {
				tag = strings.ToUpper(args[0])
			}
			return skill.QueryMarket, map[string]string{"market": tag}, true
		},
	},
	{
		names:  []string{"/stock", "/s"},
		syntax: "/stock <名称或代码> [US|HK|CN]",
		build: func(args []string) (string, map[string]string, bool) {
			if len(args) < 1 || len(args) > 2 {
				return "", nil, false
			}
			out := map[string]string{"symbol": args[0]}
			if len(args) == 2 {
				out["market"] = strings.ToUpper(args[1])
			}
			return skill.AnalyzeStock, out, true
		},
	},
	{
		names:  []string{"/github", "/gh"},
		syntax: "/github [关键词...] [天数]",
		build: func(args []string) (string, map[string]string, bool) {
			out := map[string]string{"keywords": defaultGitHubKeywords}
			if n := len(args); n > 0 {
				if _, err := strconv.Atoi(args[n-1]); err == nil {
					out["days"] = args[n-1]
					args = args[:n-1]
				}
			}
			if len(args) > 0 {
				out["keywords"] = strings.Join(args, " ")
			}
			return skill.SearchGitHub, out, true
		},
	},
	{
		names:  []string{"/paper", "/arxiv"},
		syntax: "/paper [主题...]",
		build: func(args []string) (string, map[string]string, bool) {
			topic := defaultPaperTopic
			if len(args) > 0 {
				topic = strings.Join(args, " ")
			}
			return skill.SearchPapers, map[string]string{"topic": topic}, true
		},
	},
	{
		names:  []string{"/news", "/新闻"},
		syntax: "/news [nyt|economist|all]",
		build: func(args []string) (string, map[string]string, bool) {
			if len(args) > 1 {
				return "", nil, false
			}
			out := map[string]string{"source": "all"}
			if len(args) == 1 {
				out["source"] = strings.ToLower(args[0])
			}
			return skill.ReadNews, out, true
		},
	},
	{
		names:  []string{"/chat"},
		syntax: "/chat <内容>",
		build: func(args []string) (string, map[string]string, bool) {
			if len(args) == 0 {
				return "", nil, false
			}
			return skill.Chat, map[string]string{"message": strings.Join(args, " ")}, true
		},
	},
	{
		names:  []string{"/portfolio", "/持仓"},
		syntax: "/portfolio",
		build:  fixed(skill.ManagePortfolio, map[string]string{"action": "query"}),
	},
	{
		names:  []string{"/buy"},
		syntax: "/buy <名称或代码> <股数> <价格> [US|HK|CN]",
		build:  trade("buy"),
	},
	{
		names:  []string{"/sell"},
		syntax: "/sell <名称或代码> <股数> <价格> [US|HK|CN]",
		build:  trade("sell"),
	},
	{
		names:  []string{"/reset"},
		syntax: "/reset",
		build:  fixed(skill.ManagePortfolio, map[string]string{"action": "reset"}),
	},
	{
		names:  []string{"/track"},
		syntax: "/track [US|HK|CN|ALL|history]",
		build: func(args []string) (string, map[string]string, bool) {
			if len(args) > 1 {
				return "", nil, false
			}
			out := map[string]string{}
			if len(args) == 1 {
				if strings.EqualFold(args[0], "history") {
					out["action"] = "history"
				} else {
					out["market"] = strings.ToUpper(args[0])
				}
			}
			return skill.TrackPortfolio, out, true
		},
	},
	{names: []string{"/help"}, syntax: "/help", build: fixed(skill.Help, map[string]string{})},
	{names: []string{"/clear"}, syntax: "/clear", build: fixed(skill.Session, map[string]string{"action": "clear"})},
	{names: []string{"/status"}, syntax: "/status", build: fixed(skill.Session, map[string]string{"action": "status"})},
}

var commandIndex = func() map[string]*command {
	out := make(map[string]*command)
	for i := range commands {
		for _, name := range commands[i].names {
			out[name] = &commands[i]
		}
	}
	return out
}()

func fixed(name string, args map[string]string) func([]string) (string, map[string]string, bool) {
	return func(rest []string) (string, map[string]string, bool) {
		if len(rest) > 0 {
			return "", nil, false
		}
		out := make(map[string]string, len(args))
		for k, v := range args {
			out[k] = v
		}
		return name, out, true
	}
}

func trade(action string) func([]string) (string, map[string]string, bool) {
	return func(args []string) (string, map[string]string, bool) {
		if len(args) < 3 || len(args) > 4 {
			return "", nil, false
		}
		out := map[string]string{"action": action, "symbol": args[0], "shares": args[1], "price": args[2]}
		if len(args) == 4 {
			out["market"] = strings.ToUpper(args[3])
		}
		return skill.ManagePortfolio, out, true
	}
}

// Syntaxes lists every command's usage line in table order.
func Syntaxes() []string {
	out := make([]string, 0, len(commands))
	for _, c := range commands {
		out = append(out, c.syntax)
	}
	return out
}

func resolveCommand(text string) Intent {
	fields := strings.Fields(text)
	name := strings.ToLower(fields[0])
	cmd, ok := commandIndex[name]
	if !ok {
		return Intent{
			Skill:      skill.Help,
			Args:       map[string]string{"unknown": fields[0]},
			Source:     SourceCommand,
			Confidence: 1,
			Reasoning:  "unknown command",
		}
	}
	skillName, args, ok := cmd.build(fields[1:])
	if !ok {
		return Intent{
			Skill:      skill.Help,
			Args:       map[string]string{"hint": cmd.syntax},
			Source:     SourceCommand,
			Confidence: 1,
			Reasoning:  "wrong arguments for " + name,
			Hint:       cmd.syntax,
		}
	}
	return Intent{Skill: skillName, Args: args, Source: SourceCommand, Confidence: 1}
}
