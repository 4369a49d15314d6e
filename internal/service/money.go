package service

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// round2 — денежное округление до копеек (half-up, как numeric(12,2)).
func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
