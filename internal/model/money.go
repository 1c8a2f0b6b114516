package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of decimal places in the storefront currency.
const MinorUnitScale = 2

// ParseAmount converts a decimal string in major units to a Decimal.
// Malformed or empty input yields zero so a bad price never blocks a cart.
// Examples: "99.00" → 99, "1234.56" → 1234.56, "" → 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round rounds to the currency's minor unit. Only call this when rendering
// or transmitting an amount; accumulation stays unrounded.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnitScale)
}

// MinorUnits converts a major-unit amount to an integer count of minor units.
// Examples: 99 → 9900, 123.455 → 12346
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(MinorUnitScale).Round(0).IntPart()
}

// FromMinorUnits is the inverse of MinorUnits.
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -MinorUnitScale)
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MinorUnitScale)
}
