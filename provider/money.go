package provider

import "github.com/shopspring/decimal"

// ToCents converts a decimal amount to the minor unit (centavos) using
// round-half-away-from-zero, so a half-cent never systematically underpays.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts a minor-unit amount back to its decimal display form.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
