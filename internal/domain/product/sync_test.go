package product

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	bySKU     map[string]*Product
	nextID    int64
	createErr error
	deleted   []int64
	updated   []Product
}

func newMockRepo(products ...Product) *mockRepo {
	m := &mockRepo{bySKU: make(map[string]*Product), nextID: 100}
	for i := range products {
		p := products[i]
		m.bySKU[p.SKU] = &p
	}
	return m
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Product, error) {
	for _, p := range m.bySKU {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetBySKU(_ context.Context, sku string) (*Product, error) {
	p, ok := m.bySKU[sku]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.bySKU[p.SKU] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	cp := *p
	m.bySKU[p.SKU] = &cp
	m.updated = append(m.updated, cp)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	for sku, p := range m.bySKU {
		if p.ID == id {
			delete(m.bySKU, sku)
		}
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) Upsert(_ context.Context, p *Product) error {
	cp := *p
	m.bySKU[p.SKU] = &cp
	return nil
}

func nd(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func TestSyncService_Create(t *testing.T) {
	repo := newMockRepo()
	svc := NewSyncService(repo)

	p, err := svc.Create(context.Background(), CreateRequest{
		SKU:         "WP-001",
		Name:        "Espresso machine",
		Description: "Dual boiler",
		SalesPrice:  nd("1000"),
		Discount:    nd("15"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), p.ID)
	assert.True(t, decimal.NewFromInt(1000).Equal(repo.bySKU["WP-001"].ListPrice))
	assert.True(t, decimal.NewFromInt(15).Equal(repo.bySKU["WP-001"].BrandDiscount))
}

func TestSyncService_CreateMissingName(t *testing.T) {
	svc := NewSyncService(newMockRepo())

	_, err := svc.Create(context.Background(), CreateRequest{SKU: "WP-001"})
	var mfErr *MissingFieldError
	require.ErrorAs(t, err, &mfErr)
	assert.Equal(t, "Missing required field: name", mfErr.Error())
}

func TestSyncService_CreateDuplicateSKU(t *testing.T) {
	existing := Product{ID: 7, SKU: "WP-001", Name: "Original", ListPrice: decimal.NewFromInt(500)}
	repo := newMockRepo(existing)
	svc := NewSyncService(repo)

	_, err := svc.Create(context.Background(), CreateRequest{
		SKU:        "WP-001",
		Name:       "Impostor",
		SalesPrice: nd("1"),
	})
	require.ErrorIs(t, err, ErrDuplicateSKU)
	assert.Equal(t, "Product with SKU WP-001 already exists", err.Error())

	stored := repo.bySKU["WP-001"]
	assert.Equal(t, int64(7), stored.ID)
	assert.Equal(t, "Original", stored.Name)
	assert.True(t, decimal.NewFromInt(500).Equal(stored.ListPrice))
}

func TestSyncService_CreateRaceOnUniqueIndex(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = ErrDuplicateSKU
	svc := NewSyncService(repo)

	_, err := svc.Create(context.Background(), CreateRequest{SKU: "WP-002", Name: "Grinder"})
	var skuErr *SKUError
	require.ErrorAs(t, err, &skuErr)
	assert.Equal(t, "WP-002", skuErr.SKU)
}

func TestSyncService_CreateStoreError(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("db write failed")
	svc := NewSyncService(repo)

	_, err := svc.Create(context.Background(), CreateRequest{Name: "No SKU"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create product")
}

func TestSyncService_Update(t *testing.T) {
	tests := []struct {
		name         string
		req          UpdateRequest
		wantName     string
		wantPrice    decimal.Decimal
		wantDiscount decimal.Decimal
	}{
		{
			name:         "only name",
			req:          UpdateRequest{SKU: "WP-001", Name: "Renamed"},
			wantName:     "Renamed",
			wantPrice:    decimal.NewFromInt(500),
			wantDiscount: decimal.NewFromInt(10),
		},
		{
			name:         "zero price is ignored",
			req:          UpdateRequest{SKU: "WP-001", SalesPrice: nd("0")},
			wantName:     "Original",
			wantPrice:    decimal.NewFromInt(500),
			wantDiscount: decimal.NewFromInt(10),
		},
		{
			name:         "zero discount is written",
			req:          UpdateRequest{SKU: "WP-001", Discount: nd("0"), SalesPrice: nd("650.50")},
			wantName:     "Original",
			wantPrice:    decimal.RequireFromString("650.50"),
			wantDiscount: decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(Product{
				ID: 7, SKU: "WP-001", Name: "Original",
				ListPrice: decimal.NewFromInt(500), BrandDiscount: decimal.NewFromInt(10),
			})
			svc := NewSyncService(repo)

			p, err := svc.Update(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, int64(7), p.ID)

			stored := repo.bySKU["WP-001"]
			assert.Equal(t, tt.wantName, stored.Name)
			assert.True(t, tt.wantPrice.Equal(stored.ListPrice), "price %s", stored.ListPrice)
			assert.True(t, tt.wantDiscount.Equal(stored.BrandDiscount), "discount %s", stored.BrandDiscount)
		})
	}
}

func TestSyncService_UpdateErrors(t *testing.T) {
	svc := NewSyncService(newMockRepo())

	_, err := svc.Update(context.Background(), UpdateRequest{Name: "x"})
	var mfErr *MissingFieldError
	require.ErrorAs(t, err, &mfErr)
	assert.Equal(t, "sku", mfErr.Field)

	_, err = svc.Update(context.Background(), UpdateRequest{SKU: "NOPE"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Product with SKU NOPE not found", err.Error())
}

func TestSyncService_Delete(t *testing.T) {
	repo := newMockRepo(Product{ID: 7, SKU: "WP-001", Name: "Original"})
	svc := NewSyncService(repo)

	p, err := svc.Delete(context.Background(), "WP-001")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, []int64{7}, repo.deleted)

	_, err = svc.Delete(context.Background(), "WP-001")
	require.ErrorIs(t, err, ErrNotFound)
}
