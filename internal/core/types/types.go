// Package types provides common domain value types.
package types

import (
	"github.com/shopspring/decimal"
)

// Quantity counts discrete physical PPE units.
//
// Unlike bulk goods, protective equipment is never fractional: one
// helmet, one pair of gloves. int64 keeps balance arithmetic exact and
// maps directly onto BIGINT columns.
type Quantity int64

func (q Quantity) Int64() int64 { return int64(q) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// Money represents a monetary value with full precision.
// Used for reconciliation variance valuation (counted vs book quantity
// priced at the item type's unit cost).
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred constructor for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MoneyFromUnits converts a unit count to Money for valuation math.
func MoneyFromUnits(n int64) Money {
	return decimal.NewFromInt(n)
}

// ZeroMoney returns zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}
