// Package core provides the transaction model and money conversion utilities.
//
// Amounts arrive from the bank in signed minor units (cents). All conversion
// to major units and all rounding happens here so that the aggregation code
// never touches floats.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorToMajor converts signed minor units (cents) to an exact major-unit decimal.
//
// Examples:
//
//	MinorToMajor(1234)  -> 12.34
//	MinorToMajor(-5)    -> -0.05
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// RoundMajor rounds a major-unit amount to a whole number using
// round-half-to-even.
//
// Examples:
//
//	RoundMajor(12.50) -> 12
//	RoundMajor(13.50) -> 14
//	RoundMajor(-2.50) -> -2
//	RoundMajor(-2.51) -> -3
func RoundMajor(d decimal.Decimal) int64 {
	return d.RoundBank(0).IntPart()
}

// Percent returns round(100*part/whole) with half-to-even rounding. ok is
// false when whole is zero and the percentage is undefined.
func Percent(part, whole int64) (pct int64, ok bool) {
	if whole == 0 {
		return 0, false
	}
	ratio := decimal.NewFromInt(100*part).DivRound(decimal.NewFromInt(whole), 8)
	return ratio.RoundBank(0).IntPart(), true
}

// FormatPercent renders a percentage for display, "n/a" when undefined.
func FormatPercent(part, whole int64) string {
	pct, ok := Percent(part, whole)
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%d%%", pct)
}

// ParseDisplayAmount converts a display amount such as "-12.34" to minor
// units. Fractional digits beyond the second are rounded half-to-even.
func ParseDisplayAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Shift(2).RoundBank(0).IntPart(), nil
}
