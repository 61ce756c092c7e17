package market

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/pkg/markethours"
)

func TestScaleMarketCap(t *testing.T) {
	mc := ScaleMarketCap(2_500_000)
	assert.Equal(t, Trillion, mc.Unit)
	assert.InDelta(t, 2.5, mc.Value, 1e-9)
	assert.Equal(t, "$2.50T", mc.String())

	mc = ScaleMarketCap(500)
	assert.Equal(t, Million, mc.Unit)
	assert.InDelta(t, 500, mc.Value, 1e-9)

	mc = ScaleMarketCap(1000)
	assert.Equal(t, Billion, mc.Unit)
	assert.InDelta(t, 1, mc.Value, 1e-9)

	mc = ScaleMarketCap(999_999)
	assert.Equal(t, Billion, mc.Unit)
}

func TestClassifyTrend(t *testing.T) {
	cases := map[float64]string{5: "大涨", 2: "上涨", 0.1: "小涨", 0: "平", -0.1: "小跌", -2: "下跌", -5: "大跌"}
	for pct, label := range cases {
		assert.Equalf(t, label, ClassifyTrend(pct).Label, "pct %v", pct)
	}
	assert.Equal(t, "涨幅较大，注意风险", ClassifyTrend(6).Suggestion)
	assert.Equal(t, "表现强势", ClassifyTrend(5).Suggestion)
	assert.Equal(t, "波动不大，观望为主", ClassifyTrend(-2).Suggestion)
	assert.Equal(t, "跌幅较大，谨慎操作", ClassifyTrend(-5.5).Suggestion)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "1.50万手", FormatVolume(15000))
	assert.Equal(t, "300手", FormatVolume(300))
	assert.Equal(t, "2.20万亿", FormatYiCap(22000))
	assert.Equal(t, "850.00亿", FormatYiCap(850))
	assert.Equal(t, "+1.25%", SignedPercent(1.25))
	assert.Equal(t, "-0.50%", SignedPercent(-0.5))
	assert.Equal(t, "+0.00%", SignedPercent(-0.001))
	assert.InDelta(t, 10, ChangePercent(110, 100), 1e-9)
	assert.Zero(t, ChangePercent(110, 0))
}

func TestSymbolTableResolve(t *testing.T) {
	table := NewSymbolTable(map[string]string{"宁王": "sz300750", "Berkshire": "usBRK.B"})

	cases := []struct {
		input  string
		hint   markethours.Market
		code   string
		market markethours.Market
	}{
		{"茅台", "", "sh600519", markethours.CN},
		{"腾讯", "", "hk00700", markethours.HK},
		{"阿里巴巴", markethours.US, "usBABA", markethours.US},
		{"阿里巴巴", "", "hk09988", markethours.HK},
		{"宁王", "", "sz300750", markethours.CN},
		{"berkshire", "", "usBRK.B", markethours.US},
		{"Apple", "", "usAAPL", markethours.US},
		{"600519", "", "sh600519", markethours.CN},
		{"000858", "", "sz000858", markethours.CN},
		{"700", markethours.HK, "hk00700", markethours.HK},
		{"09988", "", "hk09988", markethours.HK},
		{"SZ300750", "", "sz300750", markethours.CN},
		{"hk00700", "", "hk00700", markethours.HK},
		{"usNVDA", "", "usNVDA", markethours.US},
		{"AAPL", "", "usAAPL", markethours.US},
		{"USB", "", "usUSB", markethours.US},
		{"amd", "", "usAMD", markethours.US},
		{"宁德", "", "sz300750", markethours.CN},
	}
	for _, c := range cases {
		sym, err := table.Resolve(c.input, c.hint)
		require.NoErrorf(t, err, "resolve %q", c.input)
		assert.Equalf(t, c.code, sym.Code, "resolve %q", c.input)
		assert.Equalf(t, c.market, sym.Market, "resolve %q", c.input)
	}

	sym, err := table.Resolve("宁德", "")
	require.NoError(t, err)
	assert.Equal(t, "宁德时代", sym.Name, "fuzzy matches carry the table name")
	assert.Equal(t, "300750", sym.Ticker)

	for _, bad := range []string{"", "   ", "不存在的公司", "12345678"} {
		_, err := table.Resolve(bad, "")
		assert.Truef(t, errors.Is(err, ErrSymbolNotFound), "input %q", bad)
	}
	_, err = table.Resolve("600519", markethours.HK)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestParseCode(t *testing.T) {
	sym, ok := ParseCode("sh600519")
	require.True(t, ok)
	assert.Equal(t, Symbol{Code: "sh600519", Ticker: "600519", Market: markethours.CN}, sym)

	sym = MustParseCode("usBRK.B")
	assert.Equal(t, "BRK.B", sym.Ticker)

	_, ok = ParseCode("600519")
	assert.False(t, ok)
	assert.Panics(t, func() { MustParseCode("garbage!") })
}
