package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/leasing-bridge/internal/domain/tax"
)

const (
	listTaxCategoriesSQL = `SELECT code, name, mode, rate FROM tax_categories ORDER BY code`
	upsertTaxCategorySQL = `INSERT INTO tax_categories (code, name, mode, rate) VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, mode = EXCLUDED.mode, rate = EXCLUDED.rate`
)

var _ tax.Repository = (*TaxRepository)(nil)

// TaxRepository stores tax categories.
type TaxRepository struct {
	pool *pgxpool.Pool
}

// NewTaxRepository returns a TaxRepository that uses the given pool.
func NewTaxRepository(pool *pgxpool.Pool) *TaxRepository {
	return &TaxRepository{pool: pool}
}

// ListCategories returns every tax category.
func (r *TaxRepository) ListCategories(ctx context.Context) ([]tax.Category, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listTaxCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list tax categories")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (tax.Category, error) {
		var (
			c    tax.Category
			mode string
		)
		err := row.Scan(&c.Code, &c.Name, &mode, &c.Rate)
		c.Mode = tax.Mode(mode)
		return c, err
	})
}

// UpsertCategory creates or replaces a tax category.
func (r *TaxRepository) UpsertCategory(ctx context.Context, c tax.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := conn(ctx, r.pool).Exec(ctx, upsertTaxCategorySQL, c.Code, c.Name, string(c.Mode), c.Rate); err != nil {
		return errors.Wrapf(err, "upsert tax category %s", c.Code)
	}
	return nil
}
