// Package quote implements the installment quote engine: it turns an order
// line's unit price into a monthly financing quote, applies warranty
// surcharges and discounts, and derives the line subtotal and tax.
//
// The engine never mutates external records. A Line is a pricing context
// holding the inputs copied from the order line, its parent order terms and
// the derived amounts. Derived amounts are only written by the recomputation
// pipeline (Engine.Recompute), so they always reflect the current inputs.
package quote

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/product"
)

// DefaultMonths is the installment term used when the order term is absent
// or not one of AllowedMonths.
const DefaultMonths = 24

// AllowedMonths enumerates the supported financing terms.
var AllowedMonths = []int{12, 24, 36, 48, 60}

var (
	// ErrNegativeAmount is returned when a price, quantity or percentage
	// input is negative.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrDiscountOutOfRange is returned when a discount is above 100%.
	ErrDiscountOutOfRange = errors.New("discount percentage out of range")
)

// ComputationError reports a quote pipeline step that could not produce a
// value from the line inputs.
type ComputationError struct {
	Step  string
	Field string
	Value decimal.Decimal
	Err   error
}

func (e *ComputationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %s=%s: %v", e.Step, e.Field, e.Value, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// NormalizeMonths returns months when it is an allowed term and
// DefaultMonths otherwise.
func NormalizeMonths(months int) int {
	if slices.Contains(AllowedMonths, months) {
		return months
	}
	return DefaultMonths
}

// ParseMonths parses a storefront installment key ("12", "24", ...) and
// falls back to DefaultMonths for anything else.
func ParseMonths(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultMonths
	}
	return NormalizeMonths(n)
}

// Terms are the financing settings of an order, shared read-only by its
// lines.
type Terms struct {
	InstallmentMonths int
	// WarrantyPercentage is the surcharge applied to lines that include the
	// full service warranty.
	WarrantyPercentage decimal.Decimal
}

// Line is the pricing context of one order line.
type Line struct {
	// UnitPrice is the list price basis, already multiplied by the markup.
	UnitPrice          decimal.Decimal
	Quantity           decimal.Decimal
	Terms              Terms
	IncludeWarranty    bool
	DiscountPercentage decimal.Decimal
	ManualMonthlyQuote decimal.NullDecimal
	TaxCategory        string

	base      decimal.Decimal
	display   decimal.Decimal
	effective decimal.Decimal
	amounts   Amounts
}

// Amounts are the derived line totals.
type Amounts struct {
	// UnitPriceUsed is the effective monthly quote for financed lines and
	// the unit price for plain sale lines.
	UnitPriceUsed decimal.Decimal
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// BaseMonthlyQuote returns the last computed automatic monthly quote.
func (l *Line) BaseMonthlyQuote() decimal.Decimal { return l.base }

// DisplayMonthlyQuote returns the visible monthly quote: the manual override
// when set, the automatic quote otherwise.
func (l *Line) DisplayMonthlyQuote() decimal.Decimal { return l.display }

// EffectiveMonthlyQuote returns the monthly payment actually billed.
func (l *Line) EffectiveMonthlyQuote() decimal.Decimal { return l.effective }

// Amounts returns the last computed line totals.
func (l *Line) Amounts() Amounts { return l.amounts }

// HasManualQuote reports whether a non-zero manual override is set.
func (l *Line) HasManualQuote() bool {
	return l.ManualMonthlyQuote.Valid && !l.ManualMonthlyQuote.Decimal.IsZero()
}

// SetManualQuote sets the manual monthly override. Setting a non-zero value
// turns the warranty off; a zero value clears the override.
func (l *Line) SetManualQuote(v decimal.Decimal) {
	if v.IsZero() {
		l.ManualMonthlyQuote = decimal.NullDecimal{}
		return
	}
	l.ManualMonthlyQuote = decimal.NewNullDecimal(v)
	l.IncludeWarranty = false
}

// SelectProduct applies the product selection side effects: the line
// discount is overwritten with the product brand discount. Recomputation
// never calls it, so later edits of the discount survive.
func (l *Line) SelectProduct(p product.Product) {
	l.DiscountPercentage = p.BrandDiscount
}

func (l *Line) warrantyApplies() bool {
	return l.IncludeWarranty && l.Terms.WarrantyPercentage.IsPositive()
}

func (l *Line) reset() {
	l.base = decimal.Zero
	l.display = decimal.Zero
	l.effective = decimal.Zero
	l.amounts = Amounts{}
	if l.HasManualQuote() {
		l.display = l.ManualMonthlyQuote.Decimal
	}
}
