package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/quote"
)

// ErrNotFound is returned when an order or order line does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a financed sales order. Lines read the order Terms when priced.
type Order struct {
	ID int64
	// Name is the human readable reference, S00001 style.
	Name              string
	PartnerID         int64
	ShippingPartnerID *int64
	Note              string
	Terms             quote.Terms
	Lines             []Line
	CreatedAt         time.Time
}

// Line is an order line with its pricing context.
type Line struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	Description string
	Pricing     quote.Line
}

// FormatName renders the order reference for a sequence number.
func FormatName(seq int64) string {
	return fmt.Sprintf("S%05d", seq)
}

// Repository defines persistence operations for orders. Create and CreateLine
// assign IDs; Create also assigns Name. Derived line amounts are written but
// never read back: Get returns lines with inputs only.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	SetShippingPartner(ctx context.Context, orderID, partnerID int64) error
	UpdateTerms(ctx context.Context, o *Order) error
	CreateLine(ctx context.Context, l *Line) error
	UpdateLine(ctx context.Context, l *Line) error
}

// Transactor runs fn in a single transaction carried by the context passed
// to fn. The transaction is rolled back when fn returns an error.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LineUpdate holds a partial order line change. Nil fields are left as is.
type LineUpdate struct {
	Quantity           *decimal.Decimal
	DiscountPercentage *decimal.Decimal
	IncludeWarranty    *bool
	// ManualMonthlyQuote sets the override; zero clears it.
	ManualMonthlyQuote *decimal.Decimal
}

// TermsUpdate holds a partial order terms change.
type TermsUpdate struct {
	InstallmentMonths  *int
	WarrantyPercentage *decimal.Decimal
}
