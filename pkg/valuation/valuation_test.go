package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var analyzedAt = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func TestAnalyze(t *testing.T) {
	// eps = 100/10 = 10, growth 25% -> fair PE 25
	// iv = 10*25*0.7 + 100*0.3 = 205, margin = 105/205
	r := Analyze("sh600519", "贵州茅台", 100, Financials{PE: 10, ProfitGrowth: 25}, analyzedAt)
	require.InDelta(t, 10, r.EPS, 1e-9)
	require.InDelta(t, 25, r.FairPE, 1e-9)
	require.InDelta(t, 205, r.Intrinsic, 1e-9)
	require.InDelta(t, 105.0/205.0, r.Margin, 1e-9)
	require.Equal(t, StrongBuy, r.Recommendation)
	require.Equal(t, analyzedAt, r.AnalyzedAt)
}

func TestAnalyzeFloorsIntrinsicValue(t *testing.T) {
	// no PE: eps 0, iv = max(0 + 30, 50) = 50, margin = -1
	r := Analyze("usAAPL", "Apple", 100, Financials{PE: 0, ProfitGrowth: 10}, analyzedAt)
	require.Zero(t, r.EPS)
	require.InDelta(t, 50, r.Intrinsic, 1e-9)
	require.InDelta(t, -1, r.Margin, 1e-9)
	require.Equal(t, Sell, r.Recommendation)

	r = Analyze("x", "x", 0, DefaultFinancials(), analyzedAt)
	require.Zero(t, r.Margin, "zero price does not divide by zero")
}

func TestFairPE(t *testing.T) {
	assert.Equal(t, 25.0, FairPE(21))
	assert.Equal(t, 20.0, FairPE(20))
	assert.Equal(t, 20.0, FairPE(16))
	assert.Equal(t, 15.0, FairPE(15))
	assert.Equal(t, 15.0, FairPE(11))
	assert.Equal(t, 12.0, FairPE(10))
	assert.Equal(t, 12.0, FairPE(-5))
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, StrongBuy, Recommend(0.51))
	assert.Equal(t, Buy, Recommend(0.5))
	assert.Equal(t, Hold, Recommend(0.3))
	assert.Equal(t, Watch, Recommend(0.1))
	assert.Equal(t, Watch, Recommend(-0.09))
	assert.Equal(t, Sell, Recommend(-0.1))
}

func TestCompare(t *testing.T) {
	prev := Snapshot{Price: 100, Intrinsic: 120, Margin: 0.05, Recommendation: Watch, At: analyzedAt}
	cur := Result{Price: 80, Intrinsic: 120, Margin: 0.33, Recommendation: Buy, AnalyzedAt: analyzedAt.Add(72 * time.Hour)}

	c := Compare(cur, prev)
	require.InDelta(t, -0.2, c.PriceChange, 1e-9)
	require.Zero(t, c.IntrinsicChange)
	require.InDelta(t, 0.28, c.MarginChange, 1e-9)
	require.Equal(t, 3, c.Days)
	require.True(t, c.PriceDriven)
	require.False(t, c.FundamentalDriven)
	require.True(t, c.BandChanged)
	require.Equal(t, "买入（安全边际改善，可加仓）", c.Advice)
	require.Contains(t, c.Conclusion(), "股价大幅下跌 20.0%")
	require.Contains(t, c.Conclusion(), "安全边际扩大 28.0%")
	require.True(t, c.Noteworthy(DefaultThresholds()))
}

func TestCompareNarrowingMargin(t *testing.T) {
	prev := Snapshot{Price: 100, Intrinsic: 150, Margin: 0.33, Recommendation: Buy}
	cur := Result{Price: 105, Intrinsic: 120, Margin: 0.125, Recommendation: Hold}

	c := Compare(cur, prev)
	require.True(t, c.FundamentalDriven)
	require.Equal(t, "谨慎持有（安全边际收窄）", c.Advice)
	require.Zero(t, c.Days, "no previous timestamp")
}

func TestCompareStable(t *testing.T) {
	prev := Snapshot{Price: 100, Intrinsic: 130, Margin: 0.23, Recommendation: Hold}
	cur := Result{Price: 102, Intrinsic: 131, Margin: 0.22, Recommendation: Hold}

	c := Compare(cur, prev)
	require.Equal(t, "估值基本稳定", c.Conclusion())
	require.Equal(t, string(Hold), c.Advice)
	require.False(t, c.Noteworthy(DefaultThresholds()))
	require.True(t, c.Noteworthy(Thresholds{Margin: 0.005, Price: 1}), "custom thresholds apply")
}

func TestAnalyzeComposite(t *testing.T) {
	cases := []struct {
		name       string
		price      float64
		fin        Financials
		dcf        float64
		pe         float64
		pb         float64
		intrinsic  float64
		quality    int
		rating     string
		confidence Confidence
	}{
		{
			// g 18% is capped below the discount rate: 4*1.09/0.07
			// fair PE 20 + 3 for ROE > 15; fair PB 2.5; weights .5/.3/.2
			name:  "complete high quality",
			price: 100,
			fin: Financials{PE: 20, PB: 4, ROE: 20, ROA: 10, RevenueGrowth: 18, ProfitGrowth: 18,
				EPS: 5, BPS: 25, FCF: 4, DebtRatio: 30, CurrentRatio: 2, DividendYield: 2},
			dcf: 4 * 1.09 / 0.07, pe: 115, pb: 62.5,
			intrinsic: 4*1.09/0.07*0.5 + 115*0.3 + 62.5*0.2,
			quality:   95, rating: "优秀", confidence: ConfidenceHigh,
		},
		{
			// eps from price/PE = 2, fair PE 12 - 2 for low ROE; no BPS
			// or FCF so PB is the price and DCF is 1.2x price
			name:  "sparse low quality",
			price: 50,
			fin:   Financials{PE: 25, ROE: 5, ProfitGrowth: 5, DebtRatio: 70},
			dcf:   60, pe: 20, pb: 50,
			intrinsic: 60*0.25 + 20*0.4 + 50*0.35,
			quality:   0, rating: "较差", confidence: ConfidenceMedium,
		},
		{
			name:  "dcf floored at half the price",
			price: 100,
			fin:   Financials{FCF: 0.1, ProfitGrowth: 5, ROE: 12, ROA: 6, RevenueGrowth: 10, CurrentRatio: 1.2, DividendYield: 1.5},
			dcf:   50, pe: 100, pb: 100,
			intrinsic: 50*0.25 + 100*0.4 + 100*0.35,
			quality:   10 + 8 + 15 + 8 + 5 + 5, rating: "一般", confidence: ConfidenceLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := AnalyzeComposite(tc.price, tc.fin)
			require.True(t, c.Valid())
			assert.InDelta(t, tc.dcf, c.DCF, 1e-9)
			assert.InDelta(t, tc.pe, c.PE, 1e-9)
			assert.InDelta(t, tc.pb, c.PB, 1e-9)
			assert.InDelta(t, tc.intrinsic, c.Intrinsic, 1e-9)
			assert.InDelta(t, (tc.intrinsic-tc.price)/tc.intrinsic, c.Margin, 1e-9)
			assert.Equal(t, tc.quality, c.Quality)
			assert.Equal(t, tc.rating, c.QualityRating)
			assert.Equal(t, tc.confidence, c.Confidence)
		})
	}

	assert.False(t, AnalyzeComposite(0, DefaultFinancials()).Valid())
}

func TestQualityScoreCapsAndRates(t *testing.T) {
	top := Financials{ROE: 30, ROA: 20, DebtRatio: 10, RevenueGrowth: 30, ProfitGrowth: 30, CurrentRatio: 3, DividendYield: 5}
	assert.Equal(t, 100, QualityScore(top))
	assert.Equal(t, "优秀", QualityRating(80))
	assert.Equal(t, "良好", QualityRating(79))
	assert.Equal(t, "一般", QualityRating(40))
	assert.Equal(t, "较差", QualityRating(39))
}
