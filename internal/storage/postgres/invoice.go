package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/leasing-bridge/internal/domain/invoice"
)

const (
	createInvoiceSQL = `INSERT INTO invoices (order_id, partner_id, financing_agency_id, move_type, state, title,
			invoice_date, amount_untaxed, amount_vat, amount_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`

	createInvoiceLineSQL = `INSERT INTO invoice_lines (invoice_id, product_id, description, quantity, unit_price,
			product_list_price, include_warranty, discount, price_subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	getInvoiceSQL = `SELECT id, COALESCE(order_id, 0), partner_id, financing_agency_id, move_type, state, title,
			invoice_date, display_number, amount_untaxed, amount_vat, amount_total
		FROM invoices WHERE id = $1`

	listInvoiceLinesSQL = `SELECT id, invoice_id, COALESCE(product_id, 0), description, quantity, unit_price,
			product_list_price, include_warranty, discount, price_subtotal
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`

	// Keyed on move type and date so concurrent posts on other days proceed.
	lockNumberingSQL = `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`

	countPostedSQL = `SELECT count(*) FROM invoices
		WHERE move_type = $1 AND state = 'posted' AND invoice_date = $2 AND id <> $3`

	markPostedSQL = `UPDATE invoices SET state = $2, invoice_date = $3, display_number = $4 WHERE id = $1`
)

var _ invoice.Repository = (*InvoiceRepository)(nil)

// InvoiceRepository implements invoice.Repository backed by PostgreSQL.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Create inserts the invoice and its lines and sets their IDs. Callers run
// it inside a transaction.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	q := conn(ctx, r.pool)

	var date *time.Time
	if !inv.InvoiceDate.IsZero() {
		date = &inv.InvoiceDate
	}
	err := q.QueryRow(ctx, createInvoiceSQL,
		inv.OrderID, inv.PartnerID, inv.AgencyID, string(inv.Type), string(inv.State), inv.Title,
		date, inv.AmountUntaxed, inv.AmountVAT, inv.TotalInclVAT,
	).Scan(&inv.ID)
	if err != nil {
		return errors.Wrap(err, "create invoice")
	}

	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.InvoiceID = inv.ID
		err := q.QueryRow(ctx, createInvoiceLineSQL,
			l.InvoiceID, l.ProductID, l.Description, l.Quantity, l.UnitPrice,
			l.ProductListPrice, l.IncludeWarranty, l.Discount, l.Subtotal,
		).Scan(&l.ID)
		if err != nil {
			return errors.Wrap(err, "create invoice line")
		}
	}
	return nil
}

// Get returns the invoice with its lines.
func (r *InvoiceRepository) Get(ctx context.Context, id int64) (*invoice.Invoice, error) {
	q := conn(ctx, r.pool)

	var (
		inv         invoice.Invoice
		typ, state  string
		invoiceDate *time.Time
	)
	err := q.QueryRow(ctx, getInvoiceSQL, id).Scan(
		&inv.ID, &inv.OrderID, &inv.PartnerID, &inv.AgencyID, &typ, &state, &inv.Title,
		&invoiceDate, &inv.DisplayNumber, &inv.AmountUntaxed, &inv.AmountVAT, &inv.TotalInclVAT,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get invoice %d", id)
	}
	inv.Type = invoice.Type(typ)
	inv.State = invoice.State(state)
	if invoiceDate != nil {
		inv.InvoiceDate = *invoiceDate
	}

	rows, err := q.Query(ctx, listInvoiceLinesSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list invoice %d lines", id)
	}
	inv.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Line, error) {
		var l invoice.Line
		err := row.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.ProductListPrice, &l.IncludeWarranty, &l.Discount, &l.Subtotal)
		return l, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan invoice %d lines", id)
	}
	return &inv, nil
}

// LockNumbering takes a transaction scoped advisory lock for the numbering
// sequence of typ on date.
func (r *InvoiceRepository) LockNumbering(ctx context.Context, typ invoice.Type, date time.Time) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, lockNumberingSQL, string(typ), date.Format(time.DateOnly)); err != nil {
		return errors.Wrap(err, "advisory lock")
	}
	return nil
}

// CountPosted counts posted invoices of typ on date, excluding excludeID.
func (r *InvoiceRepository) CountPosted(ctx context.Context, typ invoice.Type, date time.Time, excludeID int64) (int, error) {
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, countPostedSQL, string(typ), date, excludeID).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count posted invoices")
	}
	return n, nil
}

// MarkPosted writes the posting state, date and display number.
func (r *InvoiceRepository) MarkPosted(ctx context.Context, inv *invoice.Invoice) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, markPostedSQL, inv.ID, string(inv.State), inv.InvoiceDate, inv.DisplayNumber)
	if err != nil {
		return errors.Wrapf(err, "mark invoice %d posted", inv.ID)
	}
	if tag.RowsAffected() == 0 {
		return invoice.ErrNotFound
	}
	return nil
}
