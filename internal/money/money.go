// Package money converts between integer cents, the unit every store and the swarm
// engine work in, and the decimal representations used on the wire.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in hundredths of the currency unit.
type Cents int64

// Decimal returns the amount as an exact two-place decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount with exactly two decimals, e.g. "1249.60".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Float64 is the JSON number form used by the edge handlers.
func (c Cents) Float64() float64 {
	return c.Decimal().InexactFloat64()
}

// Parse reads a decimal string and rounds it half away from zero to the nearest cent.
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// FromDecimal rounds d to the nearest cent.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Shift(2).Round(0).IntPart())
}

// Sum adds amounts.
func Sum(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
