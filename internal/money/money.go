// Package money does cent arithmetic for percentage discounts.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PercentOf returns pct percent of cents, rounded half away from zero to a
// whole cent. pct is clamped to 0..100.
func PercentOf(cents int64, pct int) int64 {
	if pct <= 0 || cents <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Round(0).
		IntPart()
}

// Discounted returns cents minus pct percent of it.
func Discounted(cents int64, pct int) int64 {
	return cents - PercentOf(cents, pct)
}

// Format renders cents as a plain decimal amount, e.g. 12345 -> "123.45".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
