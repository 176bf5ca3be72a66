package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/leasing-bridge/internal/domain/product"
)

const (
	productColumns = `id, COALESCE(sku, ''), name, description, list_price, brand_discount`

	getProductByIDSQL  = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductBySKUSQL = `SELECT ` + productColumns + ` FROM products WHERE sku = $1`

	createProductSQL = `INSERT INTO products (sku, name, description, list_price, brand_discount)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5) RETURNING id`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, list_price = $4, brand_discount = $5, updated_at = now()
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (sku, name, description, list_price, brand_discount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sku) WHERE sku IS NOT NULL DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, list_price = EXCLUDED.list_price,
			brand_discount = EXCLUDED.brand_discount, updated_at = now()
		RETURNING id`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySKU returns the product with the given SKU.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySKUSQL, sku)
}

func (r *ProductRepository) getOne(ctx context.Context, sql string, arg any) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %v", arg)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %v", arg)
	}
	return &p, nil
}

// Create inserts p and sets its ID. A taken SKU yields
// product.ErrDuplicateSKU.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createProductSQL,
		p.SKU, p.Name, p.Description, p.ListPrice, p.BrandDiscount,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrDuplicateSKU
		}
		return errors.Wrap(err, "create product")
	}
	return nil
}

// Update writes every mutable field of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.ListPrice, p.BrandDiscount,
	)
	if err != nil {
		return errors.Wrapf(err, "update product %d", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes the product.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert creates or replaces the product keyed by SKU and sets its ID.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if p.SKU == "" {
		return errors.New("upsert product: empty sku")
	}
	err := conn(ctx, r.pool).QueryRow(ctx, upsertProductSQL,
		p.SKU, p.Name, p.Description, p.ListPrice, p.BrandDiscount,
	).Scan(&p.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert product %s", p.SKU)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.ListPrice, &p.BrandDiscount)
	return p, err
}
