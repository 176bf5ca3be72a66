package tax

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

var _ Engine = (*Table)(nil)

// Table is an Engine over a fixed set of categories. It is safe for
// concurrent use once built.
type Table struct {
	currency   Rounder
	categories map[string]Category
}

// NewTable validates the categories and builds a Table rounding with the
// given currency.
func NewTable(currency Rounder, categories []Category) (*Table, error) {
	byCode := make(map[string]Category, len(categories))
	for _, c := range categories {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		byCode[c.Code] = c
	}
	return &Table{currency: currency, categories: byCode}, nil
}

// LoadTable builds a Table from the categories stored in repo.
func LoadTable(ctx context.Context, repo Repository, currency Rounder) (*Table, error) {
	categories, err := repo.ListCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list tax categories")
	}
	return NewTable(currency, categories)
}

// Has reports whether the table knows the category code.
func (t *Table) Has(code string) bool {
	_, ok := t.categories[code]
	return ok
}

// ComputeAll applies the discount to the price basis and computes the
// totals for the line's category. Lines without a category are untaxed.
func (t *Table) ComputeAll(_ context.Context, in Input) (Result, error) {
	factor := decimal.NewFromInt(1).Sub(in.Discount.Div(hundred))
	base := in.PriceUnit.Mul(factor).Mul(in.Quantity)

	if in.Category == "" {
		rounded := t.currency.Round(base)
		return Result{TotalExcluded: rounded, TotalIncluded: rounded}, nil
	}

	c, ok := t.categories[in.Category]
	if !ok {
		return Result{}, errors.Wrapf(ErrUnknownCategory, "category %q", in.Category)
	}

	switch c.Mode {
	case ModeInclusive:
		included := t.currency.Round(base)
		excluded := t.currency.Round(base.Div(decimal.NewFromInt(1).Add(c.Rate)))
		return Result{TotalExcluded: excluded, TotalIncluded: included}, nil
	default:
		excluded := t.currency.Round(base)
		amount := t.currency.Round(base.Mul(c.Rate))
		return Result{TotalExcluded: excluded, TotalIncluded: excluded.Add(amount)}, nil
	}
}
