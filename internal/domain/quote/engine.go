package quote

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/product"
	"github.com/xenking/leasing-bridge/internal/domain/tax"
)

var (
	one     = decimal.NewFromInt(1)
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)

	// DefaultAnnualRate is the nominal yearly financing rate.
	DefaultAnnualRate = decimal.RequireFromString("0.05")
	// DefaultMarkup multiplies product list prices before quoting and
	// invoicing.
	DefaultMarkup = decimal.RequireFromString("2.2")
)

// WarrantyPolicy selects how many times the warranty surcharge is applied to
// an automatic quote.
type WarrantyPolicy string

const (
	// WarrantyOnce applies the surcharge a single time on every path.
	WarrantyOnce WarrantyPolicy = "once"
	// WarrantyTwice applies the surcharge on the base quote and again on the
	// effective quote for lines without a manual override.
	WarrantyTwice WarrantyPolicy = "twice"
)

// Option configures an Engine.
type Option func(*Engine)

// WithAnnualRate overrides DefaultAnnualRate.
func WithAnnualRate(rate decimal.Decimal) Option {
	return func(e *Engine) { e.annualRate = rate }
}

// WithMarkup overrides DefaultMarkup.
func WithMarkup(markup decimal.Decimal) Option {
	return func(e *Engine) { e.markup = markup }
}

// WithWarrantyPolicy overrides the WarrantyOnce default.
func WithWarrantyPolicy(p WarrantyPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// Engine computes quotes and line totals. It holds no per-line state and is
// safe for concurrent use.
type Engine struct {
	taxes      tax.Engine
	currency   tax.Rounder
	annualRate decimal.Decimal
	markup     decimal.Decimal
	policy     WarrantyPolicy
}

// NewEngine creates an Engine delegating taxes to taxes and rounding line
// totals with currency.
func NewEngine(taxes tax.Engine, currency tax.Rounder, opts ...Option) *Engine {
	e := &Engine{
		taxes:      taxes,
		currency:   currency,
		annualRate: DefaultAnnualRate,
		markup:     DefaultMarkup,
		policy:     WarrantyOnce,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ListUnitPrice returns the line unit price basis for a product: its list
// price multiplied by the markup.
func (e *Engine) ListUnitPrice(p product.Product) decimal.Decimal {
	return p.ListPrice.Mul(e.markup)
}

// BaseMonthlyQuote computes the automatic monthly quote: simple interest on
// the full principal for every month of the term, spread evenly, plus the
// warranty surcharge, rounded to cents.
func (e *Engine) BaseMonthlyQuote(l *Line) (decimal.Decimal, error) {
	const step = "base monthly quote"
	if l.UnitPrice.IsNegative() {
		return decimal.Zero, &ComputationError{Step: step, Field: "unit_price", Value: l.UnitPrice, Err: ErrNegativeAmount}
	}
	if l.Terms.WarrantyPercentage.IsNegative() {
		return decimal.Zero, &ComputationError{
			Step: step, Field: "warranty_percentage", Value: l.Terms.WarrantyPercentage, Err: ErrNegativeAmount,
		}
	}

	months := decimal.NewFromInt(int64(NormalizeMonths(l.Terms.InstallmentMonths)))
	principal := l.UnitPrice
	interest := principal.Mul(e.annualRate).Mul(months).Div(twelve)
	raw := principal.Add(interest).Div(months)

	if l.warrantyApplies() {
		raw = surcharge(raw, l.Terms.WarrantyPercentage)
	}
	return raw.Round(2), nil
}

// SyncDisplayQuote mirrors the base quote into the visible quote unless a
// manual override is set, in which case the override stays visible.
func (e *Engine) SyncDisplayQuote(l *Line) {
	if l.HasManualQuote() {
		l.display = l.ManualMonthlyQuote.Decimal
		return
	}
	l.display = l.base
}

// EffectiveQuote returns the billed monthly quote: the manual override when
// set and non-zero, the base quote otherwise. The warranty surcharge is added
// to manual overrides; automatic quotes already carry it unless the engine
// runs WarrantyTwice.
func (e *Engine) EffectiveQuote(l *Line) (decimal.Decimal, error) {
	if l.HasManualQuote() {
		v := l.ManualMonthlyQuote.Decimal
		if v.IsNegative() {
			return decimal.Zero, &ComputationError{
				Step: "effective quote", Field: "manual_monthly_quote", Value: v, Err: ErrNegativeAmount,
			}
		}
		if l.warrantyApplies() {
			v = surcharge(v, l.Terms.WarrantyPercentage)
		}
		return v.Round(2), nil
	}

	v := l.base
	if e.policy == WarrantyTwice && l.warrantyApplies() {
		v = surcharge(v, l.Terms.WarrantyPercentage)
	}
	return v.Round(2), nil
}

// LineAmounts derives the subtotal, tax and total of the line. Financed lines
// are priced at their effective quote and plain sale lines at their unit
// price. The discount is applied here and only here.
func (e *Engine) LineAmounts(ctx context.Context, l *Line) (Amounts, error) {
	const step = "line amounts"
	if l.Quantity.IsNegative() {
		return Amounts{}, &ComputationError{Step: step, Field: "quantity", Value: l.Quantity, Err: ErrNegativeAmount}
	}
	if l.DiscountPercentage.IsNegative() {
		return Amounts{}, &ComputationError{
			Step: step, Field: "discount_percentage", Value: l.DiscountPercentage, Err: ErrNegativeAmount,
		}
	}
	if l.DiscountPercentage.GreaterThan(hundred) {
		return Amounts{}, &ComputationError{
			Step: step, Field: "discount_percentage", Value: l.DiscountPercentage, Err: ErrDiscountOutOfRange,
		}
	}

	used := l.UnitPrice
	if l.effective.IsPositive() {
		used = l.effective
	}

	factor := one.Sub(l.DiscountPercentage.Div(hundred))
	subtotal := e.currency.Round(used.Mul(factor).Mul(l.Quantity))

	res, err := e.taxes.ComputeAll(ctx, tax.Input{
		PriceUnit: used,
		Quantity:  l.Quantity,
		Discount:  l.DiscountPercentage,
		Category:  l.TaxCategory,
	})
	if err != nil {
		return Amounts{}, &ComputationError{Step: "line tax", Err: errors.Wrap(err, "compute taxes")}
	}
	lineTax := e.currency.Round(res.Amount())

	return Amounts{
		UnitPriceUsed: used,
		Subtotal:      subtotal,
		Tax:           lineTax,
		Total:         subtotal.Add(lineTax),
	}, nil
}

// Recompute runs the full pipeline: base quote, display quote, effective
// quote, line amounts. On error every derived field is reset to zero and the
// error is returned; callers that accept a zero quote can continue with
// Apply(ctx, l, decimal.Zero).
func (e *Engine) Recompute(ctx context.Context, l *Line) error {
	base, err := e.BaseMonthlyQuote(l)
	if err != nil {
		l.reset()
		return err
	}
	return e.Apply(ctx, l, base)
}

// Apply runs the pipeline from a given base quote.
func (e *Engine) Apply(ctx context.Context, l *Line, base decimal.Decimal) error {
	l.base = base
	e.SyncDisplayQuote(l)

	effective, err := e.EffectiveQuote(l)
	if err != nil {
		l.reset()
		return err
	}
	l.effective = effective

	amounts, err := e.LineAmounts(ctx, l)
	if err != nil {
		l.reset()
		return err
	}
	l.amounts = amounts
	return nil
}

// InvoiceTerms are the pricing fields carried from an order line to its
// invoice line.
type InvoiceTerms struct {
	UnitPrice        decimal.Decimal
	ProductListPrice decimal.Decimal
	IncludeWarranty  bool
	Discount         decimal.Decimal
}

// InvoiceLine projects an order line onto invoice pricing. Invoices are
// priced at list price times markup, independently of the financed quote.
func (e *Engine) InvoiceLine(l *Line, p product.Product) InvoiceTerms {
	return InvoiceTerms{
		UnitPrice:        e.ListUnitPrice(p),
		ProductListPrice: p.ListPrice,
		IncludeWarranty:  l.IncludeWarranty,
		Discount:         l.DiscountPercentage,
	}
}

func surcharge(v, pct decimal.Decimal) decimal.Decimal {
	return v.Add(v.Mul(pct).Div(hundred))
}
