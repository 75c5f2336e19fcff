package core

// convert.go turns raw CSV cell text into typed Record values.
//
// Cells are messy: currency symbols, thousands separators, stray BOMs and
// invalid bytes. Conversions here never fail a row; unparseable optional
// values become nil.

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PricePlaces is the stored precision of monetary values.
const PricePlaces = 2

// ParsePrice keeps only digits and '.', then parses the remainder as a
// decimal rounded to PricePlaces. Empty or malformed input ("N/A", "1.2.3")
// yields an invalid NullDecimal.
//
//	"$12.50"   -> 12.50
//	"1,234.56" -> 1234.56
//	"N/A"      -> null
func ParsePrice(s string) decimal.NullDecimal {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteByte(c)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d.Round(PricePlaces), Valid: true}
}

// nullableText cleans a cell value and returns nil when nothing is left.
func nullableText(s string) *string {
	s = strings.TrimSpace(CleanString(s))
	if s == "" {
		return nil
	}
	return &s
}
