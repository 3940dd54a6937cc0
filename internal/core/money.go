package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a non-negative decimal amount. Both dot (12.34) and
// comma (12,34) separators are accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundUpPortion returns |amount| * percentage / 100 rounded to cents.
func RoundUpPortion(amount, percentage decimal.Decimal) decimal.Decimal {
	return amount.Abs().Mul(percentage).Div(hundred).Round(2)
}

// FormatAmount renders a decimal with two fraction digits followed by the currency label.
func FormatAmount(d decimal.Decimal, currency string) string {
	if currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + currency
}
