// Package tax provides the tax computation and currency rounding used to
// derive line taxes.
package tax

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Mode represents how a category rate relates to the price it is applied to.
type Mode string

const (
	// ModeExclusive adds the tax on top of the price.
	ModeExclusive Mode = "exclusive"
	// ModeInclusive treats the price as already containing the tax.
	ModeInclusive Mode = "inclusive"
)

var (
	// ErrUnknownCategory is returned when a line references a tax category
	// that is not configured.
	ErrUnknownCategory = errors.New("unknown tax category")
	// ErrInvalidMode is returned for categories with an unsupported mode.
	ErrInvalidMode = errors.New("invalid tax mode")
	// ErrInvalidRate is returned for categories with a negative rate.
	ErrInvalidRate = errors.New("invalid tax rate")
)

// Category is a configured tax. Rate is a fraction (0.2 for 20%).
type Category struct {
	Code string
	Name string
	Mode Mode
	Rate decimal.Decimal
}

// Validate checks the category mode and rate.
func (c Category) Validate() error {
	if c.Mode != ModeExclusive && c.Mode != ModeInclusive {
		return errors.Wrapf(ErrInvalidMode, "category %q", c.Code)
	}
	if c.Rate.IsNegative() {
		return errors.Wrapf(ErrInvalidRate, "category %q", c.Code)
	}
	return nil
}

// Input is the price basis handed to the tax engine for one line.
type Input struct {
	PriceUnit decimal.Decimal
	Quantity  decimal.Decimal
	// Discount is a percentage in [0, 100] applied before tax.
	Discount decimal.Decimal
	// Category is empty for untaxed lines.
	Category string
}

// Result holds the line totals with and without tax.
type Result struct {
	TotalExcluded decimal.Decimal
	TotalIncluded decimal.Decimal
}

// Amount returns the tax portion of the result.
func (r Result) Amount() decimal.Decimal {
	return r.TotalIncluded.Sub(r.TotalExcluded)
}

// Engine computes line tax totals.
type Engine interface {
	ComputeAll(ctx context.Context, in Input) (Result, error)
}

// Repository provides the configured tax categories.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
}
