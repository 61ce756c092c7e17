package market

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"feishu-assistant/pkg/markethours"
)

var (
	cnCodePattern     = regexp.MustCompile(`^\d{6}$`)
	hkCodePattern     = regexp.MustCompile(`^\d{1,5}$`)
	usTickerPattern   = regexp.MustCompile(`^[A-Za-z]{1,5}(\.[A-Za-z])?$`)
	upperTicker       = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)
	prefixedPattern   = regexp.MustCompile(`(?i)^(?:(sh|sz)(\d{6})|(hk)(\d{4,5})|(us)([a-z]{1,5}(?:\.[a-z])?))$`)
	marketNameSuffix  = map[markethours.Market]string{markethours.HK: "港股", markethours.US: "美股"}
	minFuzzyNameRunes = 2
)

// defaultSymbols maps common names and tickers to prefixed codes.
var defaultSymbols = map[string]string{
	// A-shares
	"茅台": "sh600519", "贵州茅台": "sh600519",
	"五粮液":  "sz000858",
	"宁德时代": "sz300750",
	"比亚迪":  "sz002594",
	"招商银行": "sh600036", "招行": "sh600036",
	"中国平安": "sh601318", "平安": "sh601318",
	"中信证券": "sh600030",
	"东方财富": "sz300059", "东财": "sz300059",
	"中芯国际": "sh688981",
	"海康威视": "sz002415",
	"美的集团": "sz000333", "美的": "sz000333",
	"格力电器": "sz000651", "格力": "sz000651",
	"隆基绿能": "sh601012",
	"药明康德": "sh603259",
	"迈瑞医疗": "sz300760",
	"恒瑞医药": "sh600276",
	"立讯精密": "sz002475",
	"顺丰控股": "sz002352", "顺丰": "sz002352",
	"三一重工": "sh600031",
	"伊利股份": "sh600887", "伊利": "sh600887",
	"泸州老窖": "sz000568",
	"长江电力": "sh600900",
	"中国中免": "sh601888",
	"金山办公": "sh688111",
	"京东方A": "sz000725", "京东方": "sz000725",
	"紫金矿业": "sh601899",
	"工业富联": "sh601138",
	"山西汾酒": "sh600809",
	"科大讯飞": "sz002230",
	"中国建筑": "sh601668",
	"海尔智家": "sh600690",

	// Hong Kong
	"腾讯": "hk00700", "腾讯控股": "hk00700",
	"阿里巴巴": "hk09988", "阿里": "hk09988",
	"美团": "hk03690",
	"小米": "hk01810", "小米集团": "hk01810",
	"京东": "hk09618", "京东集团": "hk09618",
	"百度":    "hk09888",
	"网易":    "hk09999",
	"快手":    "hk01024",
	"比亚迪股份": "hk01211",
	"中国移动":  "hk00941",
	"港交所":   "hk00388", "香港交易所": "hk00388",
	"李宁":   "hk02331",
	"安踏体育": "hk02020", "安踏": "hk02020",
	"理想汽车": "hk02015",
	"小鹏汽车": "hk09868",
	"蔚来":   "hk09866",
	"联想集团": "hk00992", "联想": "hk00992",

	// US
	"苹果": "usAAPL", "apple": "usAAPL",
	"微软": "usMSFT", "microsoft": "usMSFT",
	"谷歌": "usGOOGL", "google": "usGOOGL",
	"亚马逊": "usAMZN", "amazon": "usAMZN",
	"特斯拉": "usTSLA", "tesla": "usTSLA",
	"meta": "usMETA", "facebook": "usMETA",
	"英伟达": "usNVDA", "nvidia": "usNVDA",
	"英特尔": "usINTC", "intel": "usINTC",
	"台积电": "usTSM", "tsmc": "usTSM",
	"拼多多":  "usPDD",
	"哔哩哔哩": "usBILI", "b站": "usBILI",
	"奈飞": "usNFLX", "netflix": "usNFLX",
	"可口可乐":   "usKO",
	"伯克希尔":   "usBRK.B",
	"阿里巴巴美股": "usBABA",
	"京东美股":   "usJD",
	"百度美股":   "usBIDU",
	"网易美股":   "usNTES",
}

// SymbolTable resolves free-text names and codes to instruments. It is
// immutable after construction.
type SymbolTable struct {
	byName map[string]string
	names  []string
}

// NewSymbolTable merges overrides (name -> prefixed code) over the defaults.
func NewSymbolTable(overrides map[string]string) *SymbolTable {
	t := &SymbolTable{byName: make(map[string]string, len(defaultSymbols)+len(overrides))}
	for name, code := range defaultSymbols {
		t.byName[strings.ToLower(name)] = code
	}
	for name, code := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		t.byName[name] = strings.TrimSpace(code)
	}
	t.names = make([]string, 0, len(t.byName))
	for name := range t.byName {
		t.names = append(t.names, name)
	}
	// Shortest name first so fuzzy matches prefer the most specific entry.
	sort.Slice(t.names, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(t.names[i]), utf8.RuneCountInString(t.names[j])
		if li != lj {
			return li < lj
		}
		return t.names[i] < t.names[j]
	})
	return t
}

// Resolve maps input to a Symbol. hint narrows bare numeric codes and selects
// market-specific listings ("阿里巴巴" with US resolves to usBABA); pass ""
// to detect the market automatically.
func (t *SymbolTable) Resolve(input string, hint markethours.Market) (Symbol, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Symbol{}, fmt.Errorf("%w: empty input", ErrSymbolNotFound)
	}
	key := strings.ToLower(raw)

	if suffix, ok := marketNameSuffix[hint]; ok {
		if code, ok := t.byName[key+suffix]; ok {
			return symbolWithName(code, raw)
		}
	}
	if code, ok := t.byName[key]; ok {
		return symbolWithName(code, raw)
	}

	if upperTicker.MatchString(raw) && (hint == markethours.US || hint == "") {
		return usSymbol(raw), nil
	}
	if sym, ok := ParseCode(raw); ok {
		return sym, nil
	}
	switch {
	case cnCodePattern.MatchString(raw) && hint != markethours.HK:
		return cnSymbol(raw), nil
	case hkCodePattern.MatchString(raw) && (hint == markethours.HK || hint == ""):
		return hkSymbol(raw), nil
	}

	if utf8.RuneCountInString(key) >= minFuzzyNameRunes {
		for _, name := range t.names {
			if strings.Contains(name, key) {
				return symbolWithName(t.byName[name], name)
			}
		}
	}

	if usTickerPattern.MatchString(raw) && (hint == markethours.US || hint == "") {
		return usSymbol(raw), nil
	}
	return Symbol{}, fmt.Errorf("%w: %q", ErrSymbolNotFound, raw)
}

// ParseCode parses a venue-prefixed code such as sh600519, hk00700 or usAAPL.
func ParseCode(code string) (Symbol, bool) {
	m := prefixedPattern.FindStringSubmatch(strings.TrimSpace(code))
	if m == nil {
		return Symbol{}, false
	}
	switch {
	case m[1] != "":
		return Symbol{Code: strings.ToLower(m[1]) + m[2], Ticker: m[2], Market: markethours.CN}, true
	case m[3] != "":
		return hkSymbol(m[4]), true
	default:
		return usSymbol(m[6]), true
	}
}

// MustParseCode is ParseCode for codes known to be well formed.
func MustParseCode(code string) Symbol {
	sym, ok := ParseCode(code)
	if !ok {
		panic(fmt.Sprintf("market: malformed code %q", code))
	}
	return sym
}

func symbolWithName(code, name string) (Symbol, error) {
	sym, ok := ParseCode(code)
	if !ok {
		return Symbol{}, fmt.Errorf("%w: malformed code %q for %q", ErrSymbolNotFound, code, name)
	}
	sym.Name = name
	return sym, nil
}

func cnSymbol(ticker string) Symbol {
	prefix := "sz"
	if strings.ContainsAny(ticker[:1], "569") {
		prefix = "sh"
	}
	return Symbol{Code: prefix + ticker, Ticker: ticker, Market: markethours.CN}
}

func hkSymbol(ticker string) Symbol {
	if n := len(ticker); n < 5 {
		ticker = strings.Repeat("0", 5-n) + ticker
	}
	return Symbol{Code: "hk" + ticker, Ticker: ticker, Market: markethours.HK}
}

func usSymbol(ticker string) Symbol {
	ticker = strings.ToUpper(ticker)
	return Symbol{Code: "us" + ticker, Ticker: ticker, Market: markethours.US}
}
