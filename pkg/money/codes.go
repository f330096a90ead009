package money

// Code represents a currency code (e.g., "CRD", "USD").
type Code string

// Supported currency codes
const (
	CRD Code = "CRD" // Spendable platform credits
	XTR Code = "XTR" // In-platform gateway currency
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	RUB Code = "RUB" // Russian Ruble
)

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// IsValid checks if the currency code is three uppercase letters.
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// IsCredit reports whether the code denotes spendable credits rather than real money.
func (c Code) IsCredit() bool {
	return c == CRD
}

// Decimals returns the number of minor-unit digits for the code.
func (c Code) Decimals() int32 {
	if c == XTR {
		return 0
	}
	return 2
}
