package view

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholder is shown for absent values.
const Placeholder = "--"

var hundred = decimal.NewFromInt(100)

// FormatPercent renders a fractional return as a percentage with one
// decimal, e.g. 0.1234 -> "12.3%".
func FormatPercent(v *float64) string {
	if !present(v) {
		return Placeholder
	}
	return decimal.NewFromFloat(*v).Mul(hundred).StringFixed(1) + "%"
}

// FormatNumber renders v with two decimals.
func FormatNumber(v *float64) string {
	if !present(v) {
		return Placeholder
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

// FormatText returns s, or the placeholder when s is empty.
func FormatText(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

// FormatFlags joins flags with ", ".
func FormatFlags(flags []string) string {
	if len(flags) == 0 {
		return Placeholder
	}
	return strings.Join(flags, ", ")
}

func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
