// Package money provides the amount representation shared by the ledger.
//
// Invariants:
//   - Amounts are stored in the smallest unit of their currency (hundredths of a credit).
//   - Float input is accepted only at the boundary and must be finite, positive
//     and representable without rounding.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Amount is an integer amount in the smallest unit of its currency.
type Amount int64

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// Int64 returns the raw minor-unit value.
func (a Amount) Int64() int64 {
	return int64(a)
}

// Decimal returns the amount in major units of code.
func (a Amount) Decimal(code Code) decimal.Decimal {
	return decimal.New(int64(a), -code.Decimals())
}

// Format renders the amount with the currency's fixed precision, e.g. "12.50 CRD".
func (a Amount) Format(code Code) string {
	return a.Decimal(code).StringFixed(code.Decimals()) + " " + code.String()
}

// ParseAmount converts a major-unit float into an Amount for code.
// NaN, infinities, non-positive values and values with more precision than the
// currency supports are rejected with ErrInvalidAmount.
func ParseAmount(v float64, code Code) (Amount, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return FromDecimal(decimal.NewFromFloat(v), code)
}

// FromDecimal converts a major-unit decimal into an Amount for code.
func FromDecimal(d decimal.Decimal, code Code) (Amount, error) {
	if !code.IsValid() {
		return 0, ErrInvalidCurrency
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	places := code.Decimals()
	if !d.Equal(d.Round(places)) {
		return 0, ErrInvalidAmount
	}
	minor := d.Shift(places)
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrAmountExceedsMaxSafeInt
	}
	return Amount(minor.IntPart()), nil
}

// MustParse is ParseAmount for constants and tests; it panics on invalid input.
func MustParse(v float64, code Code) Amount {
	a, err := ParseAmount(v, code)
	if err != nil {
		panic(err)
	}
	return a
}
