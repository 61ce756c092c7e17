package valuation

import "math"

// Confidence grades how complete the inputs of a Composite were.
type Confidence string

const (
	ConfidenceHigh   Confidence = "高"
	ConfidenceMedium Confidence = "中"
	ConfidenceLow    Confidence = "低"
)

const (
	discountRate   = 0.10
	terminalGrowth = 0.03
	maxDCFGrowth   = 0.25
)

// Composite is a cross-check of Result: a DCF, a PE and a PB estimate
// blended with weights chosen by the quality score.
type Composite struct {
	DCF           float64    `json:"dcf"`
	PE            float64    `json:"pe"`
	PB            float64    `json:"pb"`
	Weights       [3]float64 `json:"weights"`
	Intrinsic     float64    `json:"intrinsic"`
	Margin        float64    `json:"margin"`
	Quality       int        `json:"quality"`
	QualityRating string     `json:"quality_rating"`
	Confidence    Confidence `json:"confidence"`
}

// Valid reports whether c was computed.
func (c Composite) Valid() bool { return c.Intrinsic > 0 }

// AnalyzeComposite values an instrument at price from the extended
// financials. EPS and BPS fall back to price/PE and price/PB when the
// per-share figures are missing.
func AnalyzeComposite(price float64, fin Financials) Composite {
	if price <= 0 {
		return Composite{}
	}
	eps := fin.EPS
	if eps <= 0 && fin.PE > 0 {
		eps = price / fin.PE
	}
	bps := fin.BPS
	if bps <= 0 && fin.PB > 0 {
		bps = price / fin.PB
	}

	quality := QualityScore(fin)
	c := Composite{
		DCF:           dcfValue(fin.FCF, fin.ProfitGrowth, price),
		PE:            peValue(eps, fin.ProfitGrowth, fin.ROE, price),
		PB:            pbValue(bps, fin.ROE, price),
		Weights:       compositeWeights(quality),
		Quality:       quality,
		QualityRating: QualityRating(quality),
		Confidence:    assessConfidence(eps, bps, fin),
	}
	c.Intrinsic = c.DCF*c.Weights[0] + c.PE*c.Weights[1] + c.PB*c.Weights[2]
	if c.Intrinsic > 0 {
		c.Margin = (c.Intrinsic - price) / c.Intrinsic
	}
	return c
}

// dcfValue is a one-stage Gordon growth on free cash flow per share, floored
// at half the price. Without positive cash flow or growth it is 1.2x price.
func dcfValue(fcf, profitGrowth, price float64) float64 {
	g := math.Min(profitGrowth/100, maxDCFGrowth)
	if fcf <= 0 || g <= 0 {
		return price * 1.2
	}
	if g >= discountRate {
		g = discountRate - 0.01
	}
	return math.Max(fcf*(1+g)/(discountRate-terminalGrowth), price*floorRatio)
}

func peValue(eps, profitGrowth, roe, price float64) float64 {
	if eps <= 0 {
		return price
	}
	fair := FairPE(profitGrowth)
	switch {
	case roe > 15:
		fair += 3
	case roe < 8:
		fair -= 2
	}
	return eps * fair
}

func pbValue(bps, roe, price float64) float64 {
	if bps <= 0 {
		return price
	}
	var fair float64
	switch {
	case roe > 15:
		fair = 2.5
	case roe > 12:
		fair = 2.0
	case roe > 8:
		fair = 1.5
	default:
		fair = 1.0
	}
	return bps * fair
}

// compositeWeights returns the DCF, PE and PB weights. Better businesses
// lean on cash flow, weaker ones on relative multiples.
func compositeWeights(quality int) [3]float64 {
	switch {
	case quality >= 80:
		return [3]float64{0.5, 0.3, 0.2}
	case quality >= 60:
		return [3]float64{0.4, 0.35, 0.25}
	default:
		return [3]float64{0.25, 0.4, 0.35}
	}
}

// QualityScore rates profitability, balance sheet, growth and payout on a
// 0-100 scale.
func QualityScore(fin Financials) int {
	score := 0
	score += tier(fin.ROE > 15, fin.ROE > 10, 20, 10)
	score += tier(fin.ROA > 8, fin.ROA > 5, 15, 8)
	score += tier(fin.DebtRatio < 40, fin.DebtRatio < 60, 15, 8)
	score += tier(fin.RevenueGrowth > 15, fin.RevenueGrowth > 8, 15, 8)
	score += tier(fin.ProfitGrowth > 15, fin.ProfitGrowth > 8, 15, 8)
	score += tier(fin.CurrentRatio > 1.5, fin.CurrentRatio > 1, 10, 5)
	score += tier(fin.DividendYield > 3, fin.DividendYield > 1, 10, 5)
	return min(score, 100)
}

func tier(high, mid bool, highPts, midPts int) int {
	switch {
	case high:
		return highPts
	case mid:
		return midPts
	default:
		return 0
	}
}

// QualityRating names a quality score band.
func QualityRating(score int) string {
	switch {
	case score >= 80:
		return "优秀"
	case score >= 60:
		return "良好"
	case score >= 40:
		return "一般"
	default:
		return "较差"
	}
}

func assessConfidence(eps, bps float64, fin Financials) Confidence {
	score := 0
	if eps > 0 {
		score += 20
	}
	if fin.FCF > 0 {
		score += 20
	}
	if fin.ROE > 0 {
		score += 15
	}
	if fin.PE > 0 {
		score += 15
	}
	if fin.PB > 0 || bps > 0 {
		score += 15
	}
	if fin.DebtRatio > 0 {
		score += 15
	}
	switch {
	case score >= 80:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
