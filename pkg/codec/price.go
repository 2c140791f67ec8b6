package codec

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PriceScale is the fixed denominator of DBZ prices: one unit of the raw
// integer is 1e-9 of the currency.
const PriceScale = 1_000_000_000

// UndefPrice marks a price field with no value.
const UndefPrice = math.MaxInt64

// PriceString renders a scaled fixed-point price as its exact decimal text
// form. The conversion is pure integer arithmetic; no float is involved, so
// no representable price loses precision.
func PriceString(raw int64) string {
	return decimal.New(raw, -9).String()
}

// PriceFromString parses an exact decimal string back into a scaled
// fixed-point price. It rejects values with more than nine fractional
// digits and values outside the int64 range.
func PriceFromString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	scaled := d.Shift(9)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("price %q has sub-nanoscale precision", s)
	}
	bi := scaled.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("price %q overflows the scaled integer range", s)
	}
	return bi.Int64(), nil
}
