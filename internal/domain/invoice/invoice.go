// Package invoice projects financed orders onto customer invoices and posts
// them with a per-day display number.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/tax"
)

var (
	// ErrNotFound is returned when an invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
	// ErrEmptyOrder is returned when invoicing an order without lines.
	ErrEmptyOrder = errors.New("order has no lines to invoice")
)

// DefaultTitle is the printed invoice title.
const DefaultTitle = "Facture"

// DefaultVATRate is the flat VAT rate applied to invoice totals.
var DefaultVATRate = decimal.RequireFromString("0.2")

// Type is the accounting move type of an invoice.
type Type string

const (
	TypeOutInvoice Type = "out_invoice"
	TypeOutRefund  Type = "out_refund"
)

// State is the invoice lifecycle state.
type State string

const (
	StateDraft  State = "draft"
	StatePosted State = "posted"
)

// Line is an invoice line. Invoice lines carry no taxes; VAT is computed on
// the invoice total.
type Line struct {
	ID               int64
	InvoiceID        int64
	ProductID        int64
	Description      string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	ProductListPrice decimal.Decimal
	IncludeWarranty  bool
	Discount         decimal.Decimal
	Subtotal         decimal.Decimal
}

// Invoice is a customer invoice created from an order.
type Invoice struct {
	ID        int64
	OrderID   int64
	PartnerID int64
	// AgencyID is the financing agency billed in place of the customer.
	AgencyID      *int64
	Type          Type
	State         State
	Title         string
	InvoiceDate   time.Time
	DisplayNumber string
	Lines         []Line

	AmountUntaxed decimal.Decimal
	AmountVAT     decimal.Decimal
	TotalInclVAT  decimal.Decimal
}

// ComputeTotals sums the line subtotals and applies the VAT rate to the sum.
func (inv *Invoice) ComputeTotals(rate decimal.Decimal, currency tax.Rounder) {
	untaxed := decimal.Zero
	for _, l := range inv.Lines {
		untaxed = untaxed.Add(l.Subtotal)
	}
	vat := currency.Round(untaxed.Mul(rate))

	inv.AmountUntaxed = untaxed
	inv.AmountVAT = vat
	inv.TotalInclVAT = untaxed.Add(vat)
}

// FormatDisplayNumber renders the display number of the seq-th invoice
// posted on date: YYYYMMDD-NN.
func FormatDisplayNumber(date time.Time, seq int) string {
	return fmt.Sprintf("%s-%02d", date.Format("20060102"), seq)
}

// Repository defines persistence operations for invoices.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	// LockNumbering serializes numbering of invoices of typ on date until
	// the surrounding transaction ends.
	LockNumbering(ctx context.Context, typ Type, date time.Time) error
	// CountPosted counts posted invoices of typ on date, excluding id.
	CountPosted(ctx context.Context, typ Type, date time.Time, excludeID int64) (int, error)
	MarkPosted(ctx context.Context, inv *Invoice) error
}
