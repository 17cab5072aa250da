// Package money wraps shopspring/decimal with the rounding rule the
// reconciliation engine applies everywhere a dollar amount is derived:
// banker's rounding (round-half-even) to two decimal places.
package money

import "github.com/shopspring/decimal"

func init() {
	decimal.DivisionPrecision = 16
}

// RoundHalfEven rounds d to 2 decimal places using round-half-even, the
// convention every proration and allocation in this engine relies on so
// repeated splits don't drift a cent high or low on average.
func RoundHalfEven(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Prorate returns mrr * activeDays / totalDays, rounded half-even to cents.
func Prorate(mrr decimal.Decimal, activeDays, totalDays int) decimal.Decimal {
	if totalDays == 0 {
		return decimal.Zero
	}
	raw := mrr.Mul(decimal.NewFromInt(int64(activeDays))).Div(decimal.NewFromInt(int64(totalDays)))
	return RoundHalfEven(raw)
}

// Abs returns the absolute value of d.
func Abs(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return d.Neg()
	}
	return d
}

// WithinTolerance reports whether |d| <= tolerance.
func WithinTolerance(d, tolerance decimal.Decimal) bool {
	return Abs(d).LessThanOrEqual(tolerance)
}

// Sum adds a slice of decimals, returning zero for an empty slice.
func Sum(vals ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vals {
		total = total.Add(v)
	}
	return total
}
