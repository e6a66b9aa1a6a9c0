// Package core owns the sales data model and the query/aggregation engine.
//
// This file contains display formatting helpers for aggregate values.
// Aggregation itself always works on exact decimals; formatting is only
// for presentation surfaces.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var abbreviations = []struct {
	limit  decimal.Decimal
	suffix string
}{
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// Abbreviate renders a value compactly for cards and summaries:
// 950 -> "950", 1200 -> "1.2K", 3400000 -> "3.4M". At most maxFractionDigits
// fractional digits are kept, with trailing zeros trimmed.
func Abbreviate(v decimal.Decimal, maxFractionDigits int32) string {
	for _, a := range abbreviations {
		if v.Abs().GreaterThanOrEqual(a.limit) {
			return trimZeros(v.Div(a.limit).StringFixed(maxFractionDigits)) + a.suffix
		}
	}
	return trimZeros(v.StringFixed(maxFractionDigits))
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
