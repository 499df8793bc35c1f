package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		currency string
	}{
		{"rand with thousands", "R9,990.00", "9990", ZAR},
		{"rand with space", "R 2,499.00", "2499", ZAR},
		{"plain integer", "2499", "2499", ""},
		{"us format", "1,234.56", "1234.56", ""},
		{"european format", "1.234,56", "1234.56", ""},
		{"space grouping european decimal", "1 234,56", "1234.56", ""},
		{"euro symbol", "€2.499,00", "2499", EUR},
		{"dollar", "$120.50", "120.5", USD},
		{"pound", "£99", "99", GBP},
		{"real before rand", "R$150,00", "150", BRL},
		{"negative dash", "-45.00", "-45", ""},
		{"negative parens", "(45.00)", "-45", ""},
		{"grouping dots only", "1.234.567", "1234567", ""},
		{"single comma decimal", "899,99", "899.99", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, currency, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
			assert.Equal(t, tt.currency, currency)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "R", "abc", "R abc"} {
		t.Run(input, func(t *testing.T) {
			_, _, err := ParseAmount(input)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestPrice_Format(t *testing.T) {
	p := NewPrice(decimal.RequireFromString("8990"), ZAR)
	assert.Equal(t, "R8,990.00", p.Format())

	// Unknown currency falls back to the default.
	p = NewPrice(decimal.RequireFromString("10"), "XXX")
	assert.Contains(t, p.Format(), "10")
}

func TestDetectCurrency(t *testing.T) {
	code, cleaned := DetectCurrency("R$150,00")
	assert.Equal(t, BRL, code)
	assert.Equal(t, "150,00", cleaned)

	code, cleaned = DetectCurrency("R9,990.00")
	assert.Equal(t, ZAR, code)
	assert.Equal(t, "9,990.00", cleaned)

	code, _ = DetectCurrency("no currency here 42")
	assert.Equal(t, "", code)
}
