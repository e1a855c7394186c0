// Package units converts between human decimal amounts and the integer
// minor units the matching engine works in.
package units

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/erain9/limitbook/pkg/core"
)

var (
	ErrNegativeAmount = errors.New("negative amount")
	ErrOutOfRange     = errors.New("amount out of range")
	ErrInvalidAmount  = errors.New("invalid amount")
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits scales d by 10^decimals and truncates toward zero
func ToMinorUnits(d decimal.Decimal, decimals uint8) (int64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrNegativeAmount, d)
	}
	scaled := d.Shift(int32(decimals)).Truncate(0)
	if scaled.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: %s at %d decimals", ErrOutOfRange, d, decimals)
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits
func FromMinorUnits(v int64, decimals uint8) decimal.Decimal {
	return decimal.New(v, -int32(decimals))
}

func parse(s string, asset core.Asset) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return ToMinorUnits(d, asset.Decimals)
}

// ParsePrice reads a decimal price in quote asset units
func ParsePrice(s string, inst core.Instrument) (core.Price, error) {
	v, err := parse(s, inst.Quote)
	return core.Price(v), err
}

// ParseQuantity reads a decimal quantity in base asset units
func ParseQuantity(s string, inst core.Instrument) (core.Quantity, error) {
	v, err := parse(s, inst.Base)
	return core.Quantity(v), err
}

// Format renders minor units as "<decimal> <SYMBOL>"
func Format(v int64, asset core.Asset) string {
	return fmt.Sprintf("%s %s", FromMinorUnits(v, asset.Decimals).StringFixed(int32(asset.Decimals)), asset.Symbol)
}

// FormatPrice renders a price with the quote symbol
func FormatPrice(p core.Price, inst core.Instrument) string {
	return Format(int64(p), inst.Quote)
}

// FormatQuantity renders a quantity with the base symbol
func FormatQuantity(q core.Quantity, inst core.Instrument) string {
	return Format(int64(q), inst.Base)
}
