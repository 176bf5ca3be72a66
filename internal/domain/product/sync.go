package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MissingFieldError indicates a required request field was absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}

// SKUError reports a SKU lookup conflict. Err is ErrNotFound or
// ErrDuplicateSKU.
type SKUError struct {
	SKU string
	Err error
}

func (e *SKUError) Error() string {
	if errors.Is(e.Err, ErrDuplicateSKU) {
		return fmt.Sprintf("Product with SKU %s already exists", e.SKU)
	}
	return fmt.Sprintf("Product with SKU %s not found", e.SKU)
}

func (e *SKUError) Unwrap() error { return e.Err }

// CreateRequest holds the fields of a product pushed by the storefront.
type CreateRequest struct {
	SKU         string
	Name        string
	Description string
	SalesPrice  decimal.NullDecimal
	Discount    decimal.NullDecimal
}

// UpdateRequest holds a partial product update keyed by SKU. Empty strings
// and null decimals leave the stored value unchanged.
type UpdateRequest struct {
	SKU         string
	Name        string
	Description string
	SalesPrice  decimal.NullDecimal
	Discount    decimal.NullDecimal
}

// SyncService applies storefront product changes to the catalog.
type SyncService struct {
	products Repository
}

// NewSyncService creates a SyncService backed by the given Repository.
func NewSyncService(products Repository) *SyncService {
	return &SyncService{products: products}
}

// Create adds a new product. A non-empty SKU must not exist yet; the
// existing record is left untouched when it does.
func (s *SyncService) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if req.Name == "" {
		return nil, &MissingFieldError{Field: "name"}
	}

	if req.SKU != "" {
		_, err := s.products.GetBySKU(ctx, req.SKU)
		switch {
		case err == nil:
			return nil, &SKUError{SKU: req.SKU, Err: ErrDuplicateSKU}
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrapf(err, "lookup sku %s", req.SKU)
		}
	}

	p := &Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		ListPrice:     req.SalesPrice.Decimal,
		BrandDiscount: req.Discount.Decimal,
	}
	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return nil, &SKUError{SKU: req.SKU, Err: ErrDuplicateSKU}
		}
		return nil, errors.Wrap(err, "create product")
	}

	zctx.From(ctx).Info("Product created",
		zap.Int64("product_id", p.ID),
		zap.String("sku", p.SKU),
	)
	return p, nil
}

// Update writes the provided fields onto the product identified by SKU.
// A zero sales price is ignored while a zero discount is written.
func (s *SyncService) Update(ctx context.Context, req UpdateRequest) (*Product, error) {
	p, err := s.lookup(ctx, req.SKU)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	if req.SalesPrice.Valid && !req.SalesPrice.Decimal.IsZero() {
		p.ListPrice = req.SalesPrice.Decimal
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.Discount.Valid {
		p.BrandDiscount = req.Discount.Decimal
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %d", p.ID)
	}

	zctx.From(ctx).Info("Product updated",
		zap.Int64("product_id", p.ID),
		zap.String("sku", p.SKU),
	)
	return p, nil
}

// Delete removes the product identified by SKU and returns it.
func (s *SyncService) Delete(ctx context.Context, sku string) (*Product, error) {
	p, err := s.lookup(ctx, sku)
	if err != nil {
		return nil, err
	}
	if err := s.products.Delete(ctx, p.ID); err != nil {
		return nil, errors.Wrapf(err, "delete product %d", p.ID)
	}

	zctx.From(ctx).Info("Product deleted",
		zap.Int64("product_id", p.ID),
		zap.String("sku", p.SKU),
	)
	return p, nil
}

func (s *SyncService) lookup(ctx context.Context, sku string) (*Product, error) {
	if sku == "" {
		return nil, &MissingFieldError{Field: "sku"}
	}
	p, err := s.products.GetBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &SKUError{SKU: sku, Err: ErrNotFound}
		}
		return nil, errors.Wrapf(err, "lookup sku %s", sku)
	}
	return p, nil
}
