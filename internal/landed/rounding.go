package landed

import "github.com/shopspring/decimal"

var (
	hundred     = decimal.NewFromInt(100)
	nineHundred = decimal.NewFromInt(900)
)

// SuggestPrice returns the smallest price ending in 900 that is at least landed*multiplier.
//
//	raw  = landed * multiplier
//	base = ceil(raw / 1000) * 1000
//	base-100 if it still covers raw, else base+900
//
// Shift moves the decimal point exactly, so the ceiling never drifts near a boundary.
func SuggestPrice(landed, multiplier decimal.Decimal) decimal.Decimal {
	raw := landed.Mul(multiplier)
	base := raw.Shift(-3).Ceil().Shift(3)
	candidate := base.Sub(hundred)
	if candidate.GreaterThanOrEqual(raw) {
		return candidate
	}
	return base.Add(nineHundred)
}

// PriceLines returns copies of lines carrying one suggested price per margin, in margin order.
func PriceLines(lines []CostedLine, margins []decimal.Decimal) []CostedLine {
	out := make([]CostedLine, len(lines))
	for i, l := range lines {
		prices := make([]SuggestedPrice, len(margins))
		for j, m := range margins {
			prices[j] = SuggestedPrice{Multiplier: m, Price: SuggestPrice(l.UnitLandedCost, m)}
		}
		l.Prices = prices
		out[i] = l
	}
	return out
}
