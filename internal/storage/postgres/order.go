package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/quote"
)

const (
	createOrderSQL = `INSERT INTO orders (name, partner_id, shipping_partner_id, note, installment_months, warranty_percentage)
		VALUES ('S' || lpad(nextval('order_name_seq')::text, 5, '0'), $1, $2, $3, $4, $5)
		RETURNING id, name, created_at`

	getOrderSQL = `SELECT id, name, partner_id, shipping_partner_id, note, installment_months, warranty_percentage, created_at
		FROM orders WHERE id = $1`

	setShippingPartnerSQL = `UPDATE orders SET shipping_partner_id = $2 WHERE id = $1`

	updateTermsSQL = `UPDATE orders SET installment_months = $2, warranty_percentage = $3 WHERE id = $1`

	listOrderLinesSQL = `SELECT id, order_id, product_id, description, unit_price, quantity, include_warranty,
			discount_percentage, manual_monthly_quote, tax_category
		FROM order_lines WHERE order_id = $1 ORDER BY id`

	createOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, description, unit_price, quantity,
			include_warranty, discount_percentage, manual_monthly_quote, tax_category,
			base_monthly_quote, display_monthly_quote, effective_monthly_quote, price_subtotal, price_tax, price_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	updateOrderLineSQL = `UPDATE order_lines SET quantity = $2, include_warranty = $3, discount_percentage = $4,
			manual_monthly_quote = $5, base_monthly_quote = $6, display_monthly_quote = $7,
			effective_monthly_quote = $8, price_subtotal = $9, price_tax = $10, price_total = $11
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Derived
// line amounts are stored for reporting and ignored on read.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order header and assigns its ID and name.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createOrderSQL,
		o.PartnerID, o.ShippingPartnerID, o.Note, o.Terms.InstallmentMonths, o.Terms.WarrantyPercentage,
	).Scan(&o.ID, &o.Name, &o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

// Get returns the order with its lines. Line pricing holds inputs only.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	q := conn(ctx, r.pool)

	var o order.Order
	err := q.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.Name, &o.PartnerID, &o.ShippingPartnerID, &o.Note,
		&o.Terms.InstallmentMonths, &o.Terms.WarrantyPercentage, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}

	rows, err := q.Query(ctx, listOrderLinesSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list order %d lines", id)
	}
	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, errors.Wrapf(err, "scan order %d lines", id)
	}
	for i := range lines {
		lines[i].Pricing.Terms = o.Terms
	}
	o.Lines = lines
	return &o, nil
}

// SetShippingPartner sets the delivery address of the order.
func (r *OrderRepository) SetShippingPartner(ctx context.Context, orderID, partnerID int64) error {
	return r.exec(ctx, setShippingPartnerSQL, orderID, partnerID)
}

// UpdateTerms writes the order financing terms.
func (r *OrderRepository) UpdateTerms(ctx context.Context, o *order.Order) error {
	return r.exec(ctx, updateTermsSQL, o.ID, o.Terms.InstallmentMonths, o.Terms.WarrantyPercentage)
}

func (r *OrderRepository) exec(ctx context.Context, sql string, id int64, args ...any) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return errors.Wrapf(err, "update order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// CreateLine inserts the line with its derived amounts and sets its ID.
func (r *OrderRepository) CreateLine(ctx context.Context, l *order.Line) error {
	p := &l.Pricing
	a := p.Amounts()
	err := conn(ctx, r.pool).QueryRow(ctx, createOrderLineSQL,
		l.OrderID, l.ProductID, l.Description, p.UnitPrice, p.Quantity,
		p.IncludeWarranty, p.DiscountPercentage, p.ManualMonthlyQuote, p.TaxCategory,
		p.BaseMonthlyQuote(), p.DisplayMonthlyQuote(), p.EffectiveMonthlyQuote(), a.Subtotal, a.Tax, a.Total,
	).Scan(&l.ID)
	if err != nil {
		return errors.Wrap(err, "create order line")
	}
	return nil
}

// UpdateLine writes the editable inputs and the derived amounts of l.
func (r *OrderRepository) UpdateLine(ctx context.Context, l *order.Line) error {
	p := &l.Pricing
	a := p.Amounts()
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderLineSQL,
		l.ID, p.Quantity, p.IncludeWarranty, p.DiscountPercentage, p.ManualMonthlyQuote,
		p.BaseMonthlyQuote(), p.DisplayMonthlyQuote(), p.EffectiveMonthlyQuote(), a.Subtotal, a.Tax, a.Total,
	)
	if err != nil {
		return errors.Wrapf(err, "update order line %d", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l order.Line
		p quote.Line
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.Description, &p.UnitPrice, &p.Quantity,
		&p.IncludeWarranty, &p.DiscountPercentage, &p.ManualMonthlyQuote, &p.TaxCategory,
	)
	l.Pricing = p
	return l, err
}
