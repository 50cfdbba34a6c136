// Package money centralizes the fixed-point decimal conventions used across
// the matching engine: precision 36, scale 18, HALF_EVEN on derived values
// and ROUND_DOWN on deposit quantization.
package money

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of digits kept after the decimal point for every
// persisted monetary quantity (amount, price, volume).
const Scale = 18

func init() {
	decimal.DivisionPrecision = Scale + 2
}

// Zero is the canonical zero value at our scale.
var Zero = decimal.Zero

// Round applies HALF_EVEN (banker's rounding) at Scale digits, the default
// for every derived quantity (trade notionals, fee splits, VWAPs).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}

// RoundDown truncates toward zero at Scale digits. Used exclusively for
// deposit quantization, where rounding in the user's favor is never allowed.
func RoundDown(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(Scale)
}

// Mul multiplies two decimals and rounds the result HALF_EVEN at Scale.
// Matcher/settlement arithmetic always computes products at full (36,18)
// precision first, then rounds once at the boundary, never truncating
// intermediate terms.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Mul(b))
}

// Notional returns volume × price, rounded HALF_EVEN.
func Notional(volume, price decimal.Decimal) decimal.Decimal {
	return Mul(volume, price)
}

// IsPositive reports whether d is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// IsNonNegative reports whether d is greater than or equal to zero.
func IsNonNegative(d decimal.Decimal) bool {
	return d.Sign() >= 0
}
