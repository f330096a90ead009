package money_test

import (
	"math"
	"testing"

	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		code    money.Code
		want    money.Amount
		wantErr error
	}{
		{"whole credits", 20, money.CRD, 2000, nil},
		{"fractional credits", 12.5, money.CRD, 1250, nil},
		{"two decimals", 0.01, money.CRD, 1, nil},
		{"zero-decimal currency", 150, money.XTR, 150, nil},
		{"too precise", 1.005, money.CRD, 0, money.ErrInvalidAmount},
		{"fraction of zero-decimal currency", 1.5, money.XTR, 0, money.ErrInvalidAmount},
		{"zero", 0, money.CRD, 0, money.ErrInvalidAmount},
		{"negative", -3, money.CRD, 0, money.ErrInvalidAmount},
		{"NaN", math.NaN(), money.CRD, 0, money.ErrInvalidAmount},
		{"+Inf", math.Inf(1), money.CRD, 0, money.ErrInvalidAmount},
		{"bad code", 1, money.Code("credits"), 0, money.ErrInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := money.ParseAmount(tt.value, tt.code)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_Format(t *testing.T) {
	assert.Equal(t, "12.50 CRD", money.Amount(1250).Format(money.CRD))
	assert.Equal(t, "150 XTR", money.Amount(150).Format(money.XTR))
}

func TestDisplayConverter(t *testing.T) {
	rates, err := money.ParseRates("USD:0.012, RUB:1.1")
	require.NoError(t, err)

	conv := money.NewDisplayConverter(rates)

	usd, err := conv.Convert(money.MustParse(100, money.CRD), money.USD)
	require.NoError(t, err)
	assert.True(t, usd.Equal(decimal.RequireFromString("1.2")), usd.String())

	crd, err := conv.Convert(money.Amount(1234), money.CRD)
	require.NoError(t, err)
	assert.True(t, crd.Equal(decimal.RequireFromString("12.34")))

	_, err = conv.Convert(money.Amount(1), money.EUR)
	assert.ErrorIs(t, err, money.ErrRateUnavailable)
}

func TestParseRates_Invalid(t *testing.T) {
	_, err := money.ParseRates("USD")
	assert.Error(t, err)
	_, err = money.ParseRates("USD:-1")
	assert.Error(t, err)
	_, err = money.ParseRates("usdollar:1")
	assert.ErrorIs(t, err, money.ErrInvalidCurrency)
}
