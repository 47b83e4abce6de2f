// Package rounding holds the currency rounding rules used by tax collection.
package rounding

import "github.com/shopspring/decimal"

// Precision is the number of decimal places for currency amounts.
const Precision int32 = 2

// Round rounds half away from zero to currency precision.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Precision)
}

// RoundUp rounds toward positive infinity at the given number of places.
func RoundUp(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.RoundCeil(places)
}

// PerUnit splits a row amount across qty units, rounding up to currency
// precision. A non-positive qty yields zero.
func PerUnit(rowAmount, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return RoundUp(rowAmount.Div(qty), Precision)
}

// Convert applies an exchange rate to a base amount and rounds the result.
// A zero rate is treated as 1.
func Convert(base, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return Round(base)
	}
	return Round(base.Mul(rate))
}
