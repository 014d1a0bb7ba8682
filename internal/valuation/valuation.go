// Package valuation holds the one place where quantities and prices are
// turned into money. Every value in the system is a decimal.Decimal.
package valuation

import "github.com/shopspring/decimal"

// Tolerance is the largest accepted gap between a stated value and
// quantity × unit price.
var Tolerance = decimal.RequireFromString("0.01")

// Value returns quantity × unitPrice without rounding.
func Value(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// Consistent reports whether value matches quantity × unitPrice within Tolerance.
func Consistent(value, quantity, unitPrice decimal.Decimal) bool {
	return value.Sub(Value(quantity, unitPrice)).Abs().LessThanOrEqual(Tolerance)
}

// Round rounds money for display (2 places, banker's rounding).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
