package sources

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Odds conversion uses decimal arithmetic: bookmaker prices are quoted to
// fixed precision and float accumulation across a de-vig normalization
// visibly distorts small implied probabilities.

var one = decimal.NewFromInt(1)

// ImpliedFromDecimal converts decimal (European) odds to an implied
// probability. Odds must be greater than 1.
func ImpliedFromDecimal(odds decimal.Decimal) (decimal.Decimal, error) {
	if odds.LessThanOrEqual(one) {
		return decimal.Zero, fmt.Errorf("decimal odds must exceed 1, got %s", odds)
	}
	return one.DivRound(odds, 6), nil
}

// ImpliedFromAmerican converts American (moneyline) odds to an implied
// probability. Positive odds pay the stake times odds/100; negative odds
// require betting |odds| to win 100.
func ImpliedFromAmerican(odds int64) (decimal.Decimal, error) {
	if odds == 0 || (odds > -100 && odds < 100) {
		return decimal.Zero, fmt.Errorf("american odds out of range: %d", odds)
	}
	d := decimal.NewFromInt(odds)
	hundred := decimal.NewFromInt(100)
	if odds > 0 {
		// 100 / (odds + 100)
		return hundred.DivRound(d.Add(hundred), 6), nil
	}
	// |odds| / (|odds| + 100)
	a := d.Abs()
	return a.DivRound(a.Add(hundred), 6), nil
}

// RemoveVig strips the bookmaker margin from a set of implied
// probabilities covering one mutually-exclusive outcome set, using
// proportional (multiplicative) normalization so the set sums to 1.
func RemoveVig(implied []decimal.Decimal) []decimal.Decimal {
	total := decimal.Zero
	for _, p := range implied {
		total = total.Add(p)
	}
	if total.IsZero() {
		return implied
	}
	out := make([]decimal.Decimal, len(implied))
	for i, p := range implied {
		out[i] = p.DivRound(total, 6)
	}
	return out
}

// Overround returns the bookmaker margin of an implied probability set:
// sum(p) - 1. Zero means a fair book.
func Overround(implied []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range implied {
		total = total.Add(p)
	}
	return total.Sub(one)
}
