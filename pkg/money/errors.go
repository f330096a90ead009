package money

import "errors"

var (
	// ErrInvalidAmount is returned for non-finite, non-positive or over-precise amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency is returned when a currency code is malformed.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrAmountExceedsMaxSafeInt is returned when an amount cannot be represented in minor units.
	ErrAmountExceedsMaxSafeInt = errors.New("amount exceeds maximum safe integer value")

	// ErrRateUnavailable is returned when no display rate is configured for a code.
	ErrRateUnavailable = errors.New("display rate unavailable")
)
