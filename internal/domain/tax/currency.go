package tax

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Rounder rounds a raw amount to currency precision.
type Rounder interface {
	Round(amount decimal.Decimal) decimal.Decimal
}

// Currency rounds amounts to a multiple of its rounding unit, half away
// from zero.
type Currency struct {
	Code     string
	Rounding decimal.Decimal
}

var _ Rounder = Currency{}

// EUR is the default currency with cent precision.
var EUR = Currency{Code: "EUR", Rounding: decimal.New(1, -2)}

// NewCurrency returns a Currency with the given rounding unit.
func NewCurrency(code string, rounding decimal.Decimal) (Currency, error) {
	if code == "" {
		return Currency{}, errors.New("currency code is required")
	}
	if !rounding.IsPositive() {
		return Currency{}, errors.Errorf("currency %s: rounding must be positive, got %s", code, rounding)
	}
	return Currency{Code: code, Rounding: rounding}, nil
}

// Round returns amount rounded to the currency rounding unit.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	if !c.Rounding.IsPositive() {
		return amount.Round(2)
	}
	return amount.Div(c.Rounding).Round(0).Mul(c.Rounding)
}
