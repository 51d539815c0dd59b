package types

import "github.com/shopspring/decimal"

// CentsToDollars converts integer cents to an exact dollar amount.
func CentsToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders cents as a signed dollar string, e.g. -1.05 -> "-$1.05".
func FormatCents(cents int64) string {
	d := CentsToDollars(cents)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
