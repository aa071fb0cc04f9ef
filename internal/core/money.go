// Package core provides the domain model and the pure accounting computations:
// money parsing, allocation splitting, balance folding, settlement suggestion,
// and multi-group ledger aggregation.
//
// This file contains functions for parsing monetary amounts from strings and
// converting between cents and currency-unit representations. All arithmetic
// downstream of parsing happens in integer cents.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimalToCents converts a decimal string to cents with half-up rounding
// on the third decimal place. It accepts both dot (12.34) and comma (12,34)
// separators. The result must be strictly positive; this is the parser for
// amounts entering the system (expense totals, settlement amounts, entries).
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	cents, err := ParseShareCents(s)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseShareCents parses a decimal string to cents, allowing zero. A custom
// split may assign a member a zero base so they only carry a share of the
// evenly distributed extras.
func ParseShareCents(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	shifted := d.Shift(2).Round(0)
	cents := shifted.IntPart()
	if !shifted.Equal(decimal.NewFromInt(cents)) {
		// Magnitude exceeded int64 cents.
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// CentsFromFloat rounds a currency-unit float to the nearest cent.
// Floating division never runs last in any calculation: callers convert to
// cents first and do integer arithmetic from there.
func CentsFromFloat(f float64) int64 {
	return int64(math.Round(f * 100))
}

// Units returns the currency-unit value as a float64 for the API boundary.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimal places, e.g. "12.34" or "-0.05".
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}
