package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/product"
	"github.com/xenking/leasing-bridge/internal/domain/quote"
)

const instrumentationName = "github.com/xenking/leasing-bridge/internal/domain/order"

// ProductNotFoundError indicates a pushed SKU does not match any product.
type ProductNotFoundError struct {
	SKU string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product with SKU %s not found", e.SKU)
}

// ValidationError reports a malformed intake payload.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Intake validation errors.
var (
	ErrMissingCustomerOrProducts = &ValidationError{Message: "Missing required fields: customer or products"}
	ErrMissingSKU                = &ValidationError{Message: "One of the products is missing SKU"}
)

// Products resolves catalog products for order lines.
type Products interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	GetBySKU(ctx context.Context, sku string) (*product.Product, error)
}

// Option configures a Service.
type Option func(*Service)

// WithAtomicIntake selects whether an intake runs in a single transaction.
// When disabled, records created before a failing item are kept.
func WithAtomicIntake(atomic bool) Option {
	return func(s *Service) { s.atomic = atomic }
}

// WithTaxCategory sets the tax category assigned to new order lines.
func WithTaxCategory(code string) Option {
	return func(s *Service) { s.taxCategory = code }
}

// WithTracerProvider sets the tracer provider, noop by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider, noop by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// Service implements storefront order intake and order maintenance. Every
// mutation of pricing inputs goes through the quote engine before it is
// persisted.
type Service struct {
	engine   *quote.Engine
	orders   Repository
	products Products
	partners *partner.Registry
	tx       Transactor

	atomic         bool
	taxCategory    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	tracer    trace.Tracer
	fallbacks metric.Int64Counter
}

// NewService creates an order Service.
func NewService(
	engine *quote.Engine,
	orders Repository,
	products Products,
	partners *partner.Registry,
	tx Transactor,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		engine:         engine,
		orders:         orders,
		products:       products,
		partners:       partners,
		tx:             tx,
		atomic:         true,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	fallbacks, err := s.meterProvider.Meter(instrumentationName).Int64Counter("leasing_quote_fallback_total",
		metric.WithDescription("Order lines priced with a zero quote after a computation error"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create fallback counter")
	}
	s.fallbacks = fallbacks
	return s, nil
}

// IntakeItem is one product of a storefront order.
type IntakeItem struct {
	SKU string
	// Quantity defaults to 1 when absent or zero.
	Quantity decimal.NullDecimal
	// Discount overrides the product brand discount when present.
	Discount decimal.NullDecimal
	// ManualQuote becomes the line manual monthly quote when positive.
	ManualQuote decimal.NullDecimal
}

// IntakeRequest is a storefront order push.
type IntakeRequest struct {
	// Customer is nil when the payload carries no customer data.
	Customer *partner.Customer
	Items    []IntakeItem
	Shipping partner.Address
	Note     string
	// Installments is the raw storefront term key.
	Installments string
}

// IntakeResult is the outcome of a successful intake.
type IntakeResult struct {
	Order        *Order
	Installments int
}

// Intake creates the customer, order, lines and delivery address for a
// storefront order.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (_ *IntakeResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Intake")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "intake failed")
		}
		span.End()
	}()

	months := quote.ParseMonths(req.Installments)
	if req.Customer == nil || len(req.Items) == 0 {
		return nil, ErrMissingCustomerOrProducts
	}

	var res *IntakeResult
	run := func(ctx context.Context) error {
		o, err := s.intake(ctx, req, months)
		if err != nil {
			return err
		}
		res = &IntakeResult{Order: o, Installments: months}
		return nil
	}

	var err error
	if s.atomic {
		err = s.tx.WithinTx(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("order.id", res.Order.ID),
		attribute.Int("order.lines", len(res.Order.Lines)),
	)
	zctx.From(ctx).Info("Order received",
		zap.Int64("order_id", res.Order.ID),
		zap.String("order_name", res.Order.Name),
		zap.Int("installments", months),
		zap.Int("lines", len(res.Order.Lines)),
	)
	return res, nil
}

func (s *Service) intake(ctx context.Context, req IntakeRequest, months int) (*Order, error) {
	countryID, err := s.partners.ResolveCountry(ctx, req.Shipping.Country)
	if err != nil {
		return nil, err
	}

	customer, err := s.partners.FindOrCreateCustomer(ctx, *req.Customer, req.Shipping, countryID)
	if err != nil {
		return nil, err
	}

	o := &Order{
		PartnerID: customer.ID,
		Note:      req.Note,
		Terms:     quote.Terms{InstallmentMonths: months, WarrantyPercentage: decimal.Zero},
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	for _, item := range req.Items {
		l, err := s.intakeLine(ctx, o, item)
		if err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, *l)
	}

	if !req.Shipping.IsZero() {
		delivery, err := s.partners.CreateDelivery(ctx, customer, req.Shipping, countryID)
		if err != nil {
			return nil, err
		}
		if err := s.orders.SetShippingPartner(ctx, o.ID, delivery.ID); err != nil {
			return nil, errors.Wrap(err, "set shipping partner")
		}
		o.ShippingPartnerID = &delivery.ID
	}
	return o, nil
}

func (s *Service) intakeLine(ctx context.Context, o *Order, item IntakeItem) (*Line, error) {
	if item.SKU == "" {
		return nil, ErrMissingSKU
	}
	p, err := s.products.GetBySKU(ctx, item.SKU)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &ProductNotFoundError{SKU: item.SKU}
		}
		return nil, errors.Wrapf(err, "get product %s", item.SKU)
	}

	qty := decimal.NewFromInt(1)
	if item.Quantity.Valid && !item.Quantity.Decimal.IsZero() {
		qty = item.Quantity.Decimal
	}

	l := &Line{
		OrderID:     o.ID,
		ProductID:   p.ID,
		Description: p.Name,
		Pricing: quote.Line{
			UnitPrice:   s.engine.ListUnitPrice(*p),
			Quantity:    qty,
			Terms:       o.Terms,
			TaxCategory: s.taxCategory,
		},
	}
	l.Pricing.SelectProduct(*p)
	if item.Discount.Valid {
		l.Pricing.DiscountPercentage = item.Discount.Decimal
	}
	if item.ManualQuote.Valid && item.ManualQuote.Decimal.IsPositive() {
		l.Pricing.SetManualQuote(item.ManualQuote.Decimal)
	}

	if err := s.recompute(ctx, l); err != nil {
		return nil, err
	}
	if err := s.orders.CreateLine(ctx, l); err != nil {
		return nil, errors.Wrap(err, "create order line")
	}
	return l, nil
}

// Get returns the order with every line priced from its current inputs.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Get")
	defer span.End()

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.recomputeAll(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateTerms changes the order financing terms and reprices every line.
func (s *Service) UpdateTerms(ctx context.Context, id int64, upd TermsUpdate) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateTerms")
	defer span.End()

	var out *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if upd.InstallmentMonths != nil {
			o.Terms.InstallmentMonths = quote.NormalizeMonths(*upd.InstallmentMonths)
		}
		if upd.WarrantyPercentage != nil {
			o.Terms.WarrantyPercentage = *upd.WarrantyPercentage
		}
		if err := s.orders.UpdateTerms(ctx, o); err != nil {
			return errors.Wrap(err, "update terms")
		}
		if err := s.recomputeAll(ctx, o); err != nil {
			return err
		}
		for i := range o.Lines {
			if err := s.orders.UpdateLine(ctx, &o.Lines[i]); err != nil {
				return errors.Wrap(err, "update order line")
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateLine applies a partial line change and reprices the line. A manual
// quote is applied before the warranty flag, so an explicit flag in the same
// update wins over the manual quote side effect.
func (s *Service) UpdateLine(ctx context.Context, orderID, lineID int64, upd LineUpdate) (*Line, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateLine")
	defer span.End()

	var out *Line
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		var l *Line
		for i := range o.Lines {
			if o.Lines[i].ID == lineID {
				l = &o.Lines[i]
				break
			}
		}
		if l == nil {
			return ErrNotFound
		}

		p := &l.Pricing
		p.Terms = o.Terms
		if upd.Quantity != nil {
			p.Quantity = *upd.Quantity
		}
		if upd.DiscountPercentage != nil {
			p.DiscountPercentage = *upd.DiscountPercentage
		}
		if upd.ManualMonthlyQuote != nil {
			p.SetManualQuote(*upd.ManualMonthlyQuote)
		}
		if upd.IncludeWarranty != nil {
			p.IncludeWarranty = *upd.IncludeWarranty
		}

		if err := s.recompute(ctx, l); err != nil {
			return err
		}
		if err := s.orders.UpdateLine(ctx, l); err != nil {
			return errors.Wrap(err, "update order line")
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) recomputeAll(ctx context.Context, o *Order) error {
	for i := range o.Lines {
		o.Lines[i].Pricing.Terms = o.Terms
		if err := s.recompute(ctx, &o.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// recompute prices the line. A failing base quote is logged and replaced by
// zero; errors of the later steps are returned.
func (s *Service) recompute(ctx context.Context, l *Line) error {
	base, err := s.engine.BaseMonthlyQuote(&l.Pricing)
	if err != nil {
		step := "base monthly quote"
		var cerr *quote.ComputationError
		if errors.As(err, &cerr) {
			step = cerr.Step
		}
		zctx.From(ctx).Error("Quote computation failed, using zero quote",
			zap.Int64("order_id", l.OrderID),
			zap.Int64("line_id", l.ID),
			zap.Error(err),
		)
		s.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
		base = decimal.Zero
	}
	if err := s.engine.Apply(ctx, &l.Pricing, base); err != nil {
		return errors.Wrap(err, "price line")
	}
	return nil
}
