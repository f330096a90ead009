package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayConverter converts credit amounts to real-money values for display.
// Rates are static: one credit equals Rates[code] units of code.
// It is never used to settle or price a transaction.
type DisplayConverter struct {
	rates map[Code]decimal.Decimal
}

// NewDisplayConverter builds a converter from a per-code rate table.
func NewDisplayConverter(rates map[Code]decimal.Decimal) *DisplayConverter {
	c := &DisplayConverter{rates: make(map[Code]decimal.Decimal, len(rates))}
	for code, r := range rates {
		c.rates[code] = r
	}
	c.rates[CRD] = decimal.NewFromInt(1)
	return c
}

// ParseRates parses "USD:0.01,RUB:0.9" into a rate table.
func ParseRates(list string) (map[Code]decimal.Decimal, error) {
	rates := make(map[Code]decimal.Decimal)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, raw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("display rate %q: expected CODE:RATE", part)
		}
		c := Code(strings.ToUpper(strings.TrimSpace(code)))
		if !c.IsValid() {
			return nil, fmt.Errorf("display rate %q: %w", part, ErrInvalidCurrency)
		}
		r, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil || !r.IsPositive() {
			return nil, fmt.Errorf("display rate %q: invalid rate", part)
		}
		rates[c] = r
	}
	return rates, nil
}

// Convert returns the display value of credits in code, rounded to the code's precision.
func (c *DisplayConverter) Convert(credits Amount, code Code) (decimal.Decimal, error) {
	rate, ok := c.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", code, ErrRateUnavailable)
	}
	return credits.Decimal(CRD).Mul(rate).Round(code.Decimals()), nil
}
