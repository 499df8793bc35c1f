// Package money provides currency-aware parsing and formatting for amounts
// found in supplier pricelists. Amounts are carried as shopspring decimals
// for precision; display formatting goes through go-money so fraction digits
// follow ISO-4217.
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes seen in supplier pricelists.
const (
	ZAR = "ZAR" // South African Rand
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	BRL = "BRL" // Brazilian Real
)

// DefaultCurrency is assumed when an amount carries no symbol or code.
// Most of our supplier sheets quote in Rand.
const DefaultCurrency = ZAR

var ErrInvalidAmount = errors.New("invalid amount")

// currencySymbols maps symbols to ISO codes. Order matters: "R$" must be
// tried before the bare "R" prefix.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"R$", BRL},
	{"ZAR", ZAR},
	{"USD", USD},
	{"EUR", EUR},
	{"GBP", GBP},
	{"$", USD},
	{"€", EUR},
	{"£", GBP},
	{"R", ZAR},
}

// Price is a parsed monetary value from a pricelist cell or text fragment.
type Price struct {
	Amount   decimal.Decimal
	Currency string // ISO-4217 code, empty when nothing was detected
}

// NewPrice builds a Price from a decimal amount and currency code.
func NewPrice(amount decimal.Decimal, currency string) Price {
	return Price{Amount: amount, Currency: currency}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (p Price) IsPositive() bool {
	return p.Amount.IsPositive()
}

// Format renders the price with its currency symbol and the correct number
// of fraction digits for the currency.
func (p Price) Format() string {
	code := p.Currency
	if code == "" {
		code = DefaultCurrency
	}
	currency := gomoney.GetCurrency(code)
	if currency == nil {
		currency = gomoney.GetCurrency(DefaultCurrency)
		code = DefaultCurrency
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := p.Amount.Mul(multiplier).Round(0).IntPart()
	return gomoney.New(minor, code).Display()
}

// DetectCurrency returns the ISO code for the first currency symbol or code
// found in s, and s with every occurrence of that marker removed.
// Returns "" and the input unchanged when nothing matches.
func DetectCurrency(s string) (string, string) {
	for _, entry := range currencySymbols {
		if strings.Contains(s, entry.symbol) {
			return entry.code, strings.ReplaceAll(s, entry.symbol, "")
		}
	}
	return "", s
}

// ParseAmount parses a raw pricelist amount such as "R9,990.00", "1 234,56"
// or "€2.499,00" into a decimal value and a currency hint. The thousand and
// decimal separator convention is inferred per value rather than configured,
// because a single workbook routinely mixes exports from different systems.
func ParseAmount(raw string) (decimal.Decimal, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, "", fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	currency, s := DetectCurrency(s)

	// Strip grouping spaces (including NBSP used by some ERP exports).
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	if s == "" {
		return decimal.Zero, currency, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	s = normalizeSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, currency, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, nil
}

// normalizeSeparators rewrites a numeric string to use '.' as the decimal
// separator and no grouping separators. When both ',' and '.' appear, the
// last one wins as decimal separator. A lone comma followed by one or two
// digits is treated as decimal, otherwise as grouping.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// US: 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		after := len(s) - lastComma - 1
		if after >= 1 && after <= 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			// Multiple dots: grouping only, e.g. 1.234.567
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}
