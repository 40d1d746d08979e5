package priceparse

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		amount   float64
		currency Currency
	}{
		{"space thousands comma decimal", "1 250,50 €", 1250.50, EUR},
		{"dot thousands comma decimal", "1.250,50 €", 1250.50, EUR},
		{"symbol prefix comma thousands dot decimal", "€ 1,250.50", 1250.50, EUR},
		{"bare integer with symbol", "1250€", 1250, EUR},
		{"currency code prefix", "EUR 1250", 1250, EUR},
		{"usd symbol", "$999.99", 999.99, USD},
		{"gbp symbol", "£45", 45, GBP},
		{"no currency detected", "320", 320, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			assert.InDelta(t, tc.amount, got.Amount, 0.001)
			assert.Equal(t, tc.currency, got.Currency)
		})
	}
}

func TestParse_Unparseable(t *testing.T) {
	_, err := Parse("no digits here")
	require.Error(t, err)
}

func TestIsReasonablePrice(t *testing.T) {
	assert.True(t, IsReasonablePrice(1))
	assert.True(t, IsReasonablePrice(10_000_000))
	assert.False(t, IsReasonablePrice(0.5))
	assert.False(t, IsReasonablePrice(10_000_001))
}

func TestParse_RoundTrip(t *testing.T) {
	// parse(format(parse(s))) = parse(s) for accepted inputs.
	inputs := []string{"1 250,50 €", "1.250,50 €", "999.99"}
	for _, s := range inputs {
		first, err := Parse(s)
		require.NoError(t, err)

		formatted := strconv.FormatFloat(first.Amount, 'f', 2, 64)
		second, err := Parse(formatted)
		require.NoError(t, err)
		assert.InDelta(t, first.Amount, second.Amount, 0.001)
	}
}
