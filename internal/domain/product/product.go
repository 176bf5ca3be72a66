package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU is returned when creating a product whose SKU is taken.
	ErrDuplicateSKU = errors.New("product sku already exists")
)

// Product is a catalog item synced from the storefront.
type Product struct {
	ID          int64
	SKU         string
	Name        string
	Description string
	ListPrice   decimal.Decimal
	// BrandDiscount is a percentage used to default order line discounts.
	BrandDiscount decimal.Decimal
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
	// Upsert creates or replaces the product keyed by SKU.
	Upsert(ctx context.Context, p *Product) error
}
