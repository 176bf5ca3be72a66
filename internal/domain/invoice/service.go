package invoice

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/product"
	"github.com/xenking/leasing-bridge/internal/domain/quote"
	"github.com/xenking/leasing-bridge/internal/domain/tax"
)

var hundred = decimal.NewFromInt(100)

// Orders reads orders to invoice.
type Orders interface {
	Get(ctx context.Context, id int64) (*order.Order, error)
}

// Products reads the products referenced by order lines.
type Products interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}

// Config holds invoice defaults.
type Config struct {
	VATRate decimal.Decimal
	Title   string
}

// Service creates and posts invoices.
type Service struct {
	engine   *quote.Engine
	currency tax.Rounder
	orders   Orders
	products Products
	agencies partner.AgencyRepository
	invoices Repository
	tx       order.Transactor
	cfg      Config
	now      func() time.Time
}

// NewService creates an invoice Service. Zero config fields fall back to
// DefaultVATRate and DefaultTitle.
func NewService(
	engine *quote.Engine,
	currency tax.Rounder,
	orders Orders,
	products Products,
	agencies partner.AgencyRepository,
	invoices Repository,
	tx order.Transactor,
	cfg Config,
) *Service {
	if cfg.VATRate.IsZero() {
		cfg.VATRate = DefaultVATRate
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	return &Service{
		engine:   engine,
		currency: currency,
		orders:   orders,
		products: products,
		agencies: agencies,
		invoices: invoices,
		tx:       tx,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateRequest holds the optional invoice settings.
type CreateRequest struct {
	OrderID  int64
	AgencyID *int64
	Title    string
}

// CreateFromOrder creates a draft invoice for the order. A financing agency
// replaces the customer as invoice partner.
func (s *Service) CreateFromOrder(ctx context.Context, req CreateRequest) (*Invoice, error) {
	var out *Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.Get(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if len(o.Lines) == 0 {
			return ErrEmptyOrder
		}

		inv := &Invoice{
			OrderID:   o.ID,
			PartnerID: o.PartnerID,
			Type:      TypeOutInvoice,
			State:     StateDraft,
			Title:     req.Title,
		}
		if inv.Title == "" {
			inv.Title = s.cfg.Title
		}
		if req.AgencyID != nil {
			agency, err := s.agencies.GetAgency(ctx, *req.AgencyID)
			if err != nil {
				return errors.Wrapf(err, "get financing agency %d", *req.AgencyID)
			}
			inv.AgencyID = &agency.ID
			inv.PartnerID = agency.PartnerID
		}

		for i := range o.Lines {
			ol := &o.Lines[i]
			p, err := s.products.GetByID(ctx, ol.ProductID)
			if err != nil {
				return errors.Wrapf(err, "get product %d", ol.ProductID)
			}
			inv.Lines = append(inv.Lines, s.line(ol, *p))
		}
		inv.ComputeTotals(s.cfg.VATRate, s.currency)

		if err := s.invoices.Create(ctx, inv); err != nil {
			return errors.Wrap(err, "create invoice")
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Invoice created",
		zap.Int64("invoice_id", out.ID),
		zap.Int64("order_id", out.OrderID),
		zap.String("total", out.TotalInclVAT.StringFixed(2)),
	)
	return out, nil
}

func (s *Service) line(ol *order.Line, p product.Product) Line {
	terms := s.engine.InvoiceLine(&ol.Pricing, p)
	factor := decimal.NewFromInt(1).Sub(terms.Discount.Div(hundred))
	description := p.Description
	if description == "" {
		description = ol.Description
	}
	return Line{
		ProductID:        p.ID,
		Description:      description,
		Quantity:         ol.Pricing.Quantity,
		UnitPrice:        terms.UnitPrice,
		ProductListPrice: terms.ProductListPrice,
		IncludeWarranty:  terms.IncludeWarranty,
		Discount:         terms.Discount,
		Subtotal:         s.currency.Round(terms.UnitPrice.Mul(factor).Mul(ol.Pricing.Quantity)),
	}
}

// Post posts the invoice and assigns its display number. The number counts
// the invoices of the same type already posted on the invoice date. Posting
// an invoice that already has a number keeps it.
func (s *Service) Post(ctx context.Context, id int64) (*Invoice, error) {
	var out *Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.Get(ctx, id)
		if err != nil {
			return err
		}
		if inv.InvoiceDate.IsZero() {
			y, m, d := s.now().Date()
			inv.InvoiceDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
		inv.State = StatePosted

		if inv.DisplayNumber == "" {
			if err := s.invoices.LockNumbering(ctx, inv.Type, inv.InvoiceDate); err != nil {
				return errors.Wrap(err, "lock numbering")
			}
			n, err := s.invoices.CountPosted(ctx, inv.Type, inv.InvoiceDate, inv.ID)
			if err != nil {
				return errors.Wrap(err, "count posted invoices")
			}
			inv.DisplayNumber = FormatDisplayNumber(inv.InvoiceDate, n+1)
		}

		if err := s.invoices.MarkPosted(ctx, inv); err != nil {
			return errors.Wrap(err, "mark posted")
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Invoice posted",
		zap.Int64("invoice_id", out.ID),
		zap.String("display_number", out.DisplayNumber),
	)
	return out, nil
}
