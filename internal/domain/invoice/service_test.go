package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/product"
	"github.com/xenking/leasing-bridge/internal/domain/quote"
	"github.com/xenking/leasing-bridge/internal/domain/tax"
)

type mockOrders struct {
	orders map[int64]*order.Order
}

func (m *mockOrders) Get(_ context.Context, id int64) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type mockProducts struct {
	byID map[int64]product.Product
}

func (m *mockProducts) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

type mockAgencies struct{}

func (mockAgencies) GetAgency(_ context.Context, id int64) (*partner.FinancingAgency, error) {
	if id != 7 {
		return nil, partner.ErrNotFound
	}
	return &partner.FinancingAgency{ID: 7, Name: "Grenke", PartnerID: 700}, nil
}

type memInvoices struct {
	invoices map[int64]*Invoice
	locks    int
}

func (m *memInvoices) Create(_ context.Context, inv *Invoice) error {
	inv.ID = int64(len(m.invoices) + 1)
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memInvoices) Get(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoices) LockNumbering(_ context.Context, _ Type, _ time.Time) error {
	m.locks++
	return nil
}

func (m *memInvoices) CountPosted(_ context.Context, typ Type, date time.Time, excludeID int64) (int, error) {
	n := 0
	for _, inv := range m.invoices {
		if inv.ID != excludeID && inv.Type == typ && inv.State == StatePosted && inv.InvoiceDate.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (m *memInvoices) MarkPosted(_ context.Context, inv *Invoice) error {
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService(t *testing.T) (*Service, *memInvoices) {
	t.Helper()
	table, err := tax.NewTable(tax.EUR, nil)
	require.NoError(t, err)

	orders := &mockOrders{orders: map[int64]*order.Order{
		1: {
			ID:        1,
			PartnerID: 10,
			Terms:     quote.Terms{InstallmentMonths: 36},
			Lines: []order.Line{
				{ID: 1, ProductID: 100, Description: "Laptop", Pricing: quote.Line{
					UnitPrice: d("2200"), Quantity: d("2"), IncludeWarranty: true, DiscountPercentage: d("10"),
				}},
				{ID: 2, ProductID: 200, Description: "Dock", Pricing: quote.Line{
					UnitPrice: d("22"), Quantity: d("1"), ManualMonthlyQuote: decimal.NewNullDecimal(d("5")),
				}},
			},
		},
		2: {ID: 2, PartnerID: 10},
	}}
	products := &mockProducts{byID: map[int64]product.Product{
		100: {ID: 100, SKU: "LAPTOP-1", Name: "Laptop", Description: "14 inch laptop", ListPrice: d("1000")},
		200: {ID: 200, SKU: "DOCK-1", Name: "Dock", ListPrice: d("10.05")},
	}}
	invoices := &memInvoices{invoices: make(map[int64]*Invoice)}

	svc := NewService(quote.NewEngine(table, tax.EUR), tax.EUR, orders, products, mockAgencies{}, invoices, passTx{}, Config{})
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 15, 4, 5, 0, time.Local) }
	return svc, invoices
}

func TestService_CreateFromOrder(t *testing.T) {
	svc, _ := newTestService(t)

	inv, err := svc.CreateFromOrder(context.Background(), CreateRequest{OrderID: 1})
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, inv.Title)
	assert.Equal(t, int64(10), inv.PartnerID)
	assert.Equal(t, StateDraft, inv.State)
	require.Len(t, inv.Lines, 2)

	laptop := inv.Lines[0]
	assert.True(t, d("2200").Equal(laptop.UnitPrice), "list price times markup")
	assert.True(t, d("1000").Equal(laptop.ProductListPrice))
	assert.True(t, laptop.IncludeWarranty)
	assert.True(t, d("10").Equal(laptop.Discount))
	assert.Equal(t, "14 inch laptop", laptop.Description)
	// 2200 * 0.9 * 2
	assert.True(t, d("3960").Equal(laptop.Subtotal))

	dock := inv.Lines[1]
	assert.Equal(t, "Dock", dock.Description, "falls back to line description")
	// 10.05 * 2.2 = 22.11, independent of the manual quote
	assert.True(t, d("22.11").Equal(dock.Subtotal))

	assert.True(t, d("3982.11").Equal(inv.AmountUntaxed))
	// 3982.11 * 0.2 = 796.422
	assert.True(t, d("796.42").Equal(inv.AmountVAT))
	assert.True(t, d("4778.53").Equal(inv.TotalInclVAT))
}

func TestService_CreateFromOrderAgency(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	agency := int64(7)
	inv, err := svc.CreateFromOrder(ctx, CreateRequest{OrderID: 1, AgencyID: &agency, Title: "Facture de loyer"})
	require.NoError(t, err)
	assert.Equal(t, int64(700), inv.PartnerID)
	assert.Equal(t, &agency, inv.AgencyID)
	assert.Equal(t, "Facture de loyer", inv.Title)

	unknown := int64(8)
	_, err = svc.CreateFromOrder(ctx, CreateRequest{OrderID: 1, AgencyID: &unknown})
	require.ErrorIs(t, err, partner.ErrNotFound)
}

func TestService_CreateFromOrderErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateFromOrder(ctx, CreateRequest{OrderID: 2})
	require.ErrorIs(t, err, ErrEmptyOrder)

	_, err = svc.CreateFromOrder(ctx, CreateRequest{OrderID: 3})
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestService_Post(t *testing.T) {
	svc, invoices := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateFromOrder(ctx, CreateRequest{OrderID: 1})
	require.NoError(t, err)
	second, err := svc.CreateFromOrder(ctx, CreateRequest{OrderID: 1})
	require.NoError(t, err)

	posted, err := svc.Post(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePosted, posted.State)
	assert.Equal(t, "20260309-01", posted.DisplayNumber)

	posted, err = svc.Post(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "20260309-02", posted.DisplayNumber)

	again, err := svc.Post(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "20260309-01", again.DisplayNumber, "reposting keeps the number")
	assert.Equal(t, 2, invoices.locks)

	_, err = svc.Post(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFormatDisplayNumber(t *testing.T) {
	date := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "20251201-01", FormatDisplayNumber(date, 1))
	assert.Equal(t, "20251201-12", FormatDisplayNumber(date, 12))
	assert.Equal(t, "20251201-123", FormatDisplayNumber(date, 123))
}

func TestInvoice_ComputeTotals(t *testing.T) {
	inv := &Invoice{}
	inv.ComputeTotals(DefaultVATRate, tax.EUR)
	assert.True(t, inv.AmountVAT.IsZero())
	assert.True(t, inv.TotalInclVAT.IsZero())

	inv.Lines = []Line{{Subtotal: d("0.03")}, {Subtotal: d("0.04")}}
	inv.ComputeTotals(DefaultVATRate, tax.EUR)
	// 0.07 * 0.2 = 0.014
	assert.True(t, d("0.01").Equal(inv.AmountVAT))
	assert.True(t, d("0.08").Equal(inv.TotalInclVAT))
}
