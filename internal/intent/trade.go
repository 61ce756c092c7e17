package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	buyKeywords       = []string{"买入", "buy", "购买", "买进"}
	sellKeywords      = []string{"卖出", "sell", "抛售", "卖掉"}
	portfolioKeywords = []string{"查看持仓", "持仓", "我的股票", "my portfolio", "my positions"}

	numberPattern  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	fillerPrefix   = regexp.MustCompile(`^(?:一下|记录|个|点)\s*`)
	nameThenNumber = regexp.MustCompile(`^([\p{Han}A-Za-z]+)\s*\d`)
	hanName        = regexp.MustCompile(`\p{Han}{2,5}`)
	upperCode      = regexp.MustCompile(`[A-Z]{1,5}`)
	tradeNoise     = []string{"买入", "卖出", "buy", "sell", "购买", "记录", "价格", "元", "股"}
)

// Trade is a buy or sell parsed from a free-form message.
type Trade struct {
	Action string
	Name   string
	Shares string
	Price  string
}

// Args renders t as manage_portfolio arguments.
func (t Trade) Args() map[string]string {
	return map[string]string{"action": t.Action, "symbol": t.Name, "shares": t.Shares, "price": t.Price}
}

// foldASCII lowercases A-Z only, so byte offsets into the result are valid
// offsets into s. strings.ToLower may change the byte length of other runes.
func foldASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func isPortfolioQuery(text string) bool {
	lower := foldASCII(text)
	for _, kw := range portfolioKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ParseTrade recognizes messages such as "买入茅台 100股 价格1500" or
// "sell AAPL 10 180". The first number is the share count, the second the
// price; both must be positive.
func ParseTrade(text string) (Trade, bool) {
	msg := strings.TrimSpace(text)
	lower := foldASCII(msg)

	action, keyword := "", ""
	for _, kw := range buyKeywords {
		if strings.Contains(lower, kw) {
			action, keyword = "buy", kw
			break
		}
	}
	if action == "" {
		for _, kw := range sellKeywords {
			if strings.Contains(lower, kw) {
				action, keyword = "sell", kw
				break
			}
		}
	}
	if action == "" {
		return Trade{}, false
	}

	numbers := numberPattern.FindAllString(msg, -1)
	if len(numbers) < 2 {
		return Trade{}, false
	}
	shares, err := strconv.ParseFloat(numbers[0], 64)
	if err != nil || shares < 1 {
		return Trade{}, false
	}
	price, err := strconv.ParseFloat(numbers[1], 64)
	if err != nil || price <= 0 {
		return Trade{}, false
	}

	name := ""
	if pos := strings.Index(lower, keyword); pos >= 0 {
		after := strings.TrimSpace(msg[pos+len(keyword):])
		after = fillerPrefix.ReplaceAllString(after, "")
		if m := nameThenNumber.FindStringSubmatch(after); m != nil {
			name = m[1]
		}
	}
	if name == "" {
		cleaned := lower
		for _, kw := range tradeNoise {
			cleaned = strings.ReplaceAll(cleaned, kw, " ")
		}
		if m := hanName.FindString(cleaned); m != "" {
			name = m
		} else if m := upperCode.FindString(strings.ToUpper(cleaned)); m != "" {
			name = m
		}
	}
	if name == "" {
		return Trade{}, false
	}
	return Trade{
		Action: action,
		Name:   name,
		Shares: strconv.FormatInt(int64(shares), 10),
		Price:  numbers[1],
	}, true
}
