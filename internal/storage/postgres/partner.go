package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/leasing-bridge/internal/domain/partner"
)

const (
	partnerColumns = `id, kind, parent_id, name, email, siren, street, city, zip, country_id`

	findPartnerByEmailSQL = `SELECT ` + partnerColumns + ` FROM partners
		WHERE email = $1 AND kind = 'contact' ORDER BY id LIMIT 1`
	getPartnerSQL    = `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`
	createPartnerSQL = `INSERT INTO partners (kind, parent_id, name, email, siren, street, city, zip, country_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	lookupCountrySQL = `SELECT id, code, name FROM countries
		WHERE code = upper($1) OR name = $1 ORDER BY code = upper($1) DESC, id LIMIT 1`
	upsertCountrySQL = `INSERT INTO countries (code, name) VALUES (upper($1), $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name RETURNING id`

	getAgencySQL    = `SELECT id, name, partner_id FROM financing_agencies WHERE id = $1`
	upsertAgencySQL = `INSERT INTO financing_agencies (name, partner_id) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET partner_id = EXCLUDED.partner_id RETURNING id`
)

var (
	_ partner.Repository       = (*PartnerRepository)(nil)
	_ partner.CountryRegistry  = (*PartnerRepository)(nil)
	_ partner.AgencyRepository = (*PartnerRepository)(nil)
)

// PartnerRepository stores partners, countries and financing agencies.
type PartnerRepository struct {
	pool *pgxpool.Pool
}

// NewPartnerRepository returns a PartnerRepository that uses the given pool.
func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool}
}

// FindByEmail returns the oldest customer registered with email.
func (r *PartnerRepository) FindByEmail(ctx context.Context, email string) (*partner.Partner, error) {
	return r.getOne(ctx, findPartnerByEmailSQL, email)
}

// GetByID returns a partner by ID.
func (r *PartnerRepository) GetByID(ctx context.Context, id int64) (*partner.Partner, error) {
	return r.getOne(ctx, getPartnerSQL, id)
}

func (r *PartnerRepository) getOne(ctx context.Context, sql string, arg any) (*partner.Partner, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "get partner")
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPartner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, partner.ErrNotFound
		}
		return nil, errors.Wrap(err, "get partner")
	}
	return &p, nil
}

// Create inserts p and sets its ID.
func (r *PartnerRepository) Create(ctx context.Context, p *partner.Partner) error {
	kind := p.Kind
	if kind == "" {
		kind = partner.KindContact
	}
	err := conn(ctx, r.pool).QueryRow(ctx, createPartnerSQL,
		string(kind), p.ParentID, p.Name, p.Email, p.Siren, p.Street, p.City, p.Zip, p.CountryID,
	).Scan(&p.ID)
	if err != nil {
		return errors.Wrap(err, "create partner")
	}
	p.Kind = kind
	return nil
}

// Lookup matches a country by ISO code, case-insensitively, or exact name.
// A code match wins over a name match.
func (r *PartnerRepository) Lookup(ctx context.Context, codeOrName string) (*partner.Country, error) {
	var c partner.Country
	err := conn(ctx, r.pool).QueryRow(ctx, lookupCountrySQL, codeOrName).Scan(&c.ID, &c.Code, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, partner.ErrNotFound
		}
		return nil, errors.Wrapf(err, "lookup country %q", codeOrName)
	}
	return &c, nil
}

// UpsertCountry registers a country and sets its ID.
func (r *PartnerRepository) UpsertCountry(ctx context.Context, c *partner.Country) error {
	if err := conn(ctx, r.pool).QueryRow(ctx, upsertCountrySQL, c.Code, c.Name).Scan(&c.ID); err != nil {
		return errors.Wrapf(err, "upsert country %s", c.Code)
	}
	return nil
}

// GetAgency returns a financing agency by ID.
func (r *PartnerRepository) GetAgency(ctx context.Context, id int64) (*partner.FinancingAgency, error) {
	var a partner.FinancingAgency
	err := conn(ctx, r.pool).QueryRow(ctx, getAgencySQL, id).Scan(&a.ID, &a.Name, &a.PartnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, partner.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get financing agency %d", id)
	}
	return &a, nil
}

// UpsertAgency registers a financing agency by name and sets its ID.
func (r *PartnerRepository) UpsertAgency(ctx context.Context, a *partner.FinancingAgency) error {
	if err := conn(ctx, r.pool).QueryRow(ctx, upsertAgencySQL, a.Name, a.PartnerID).Scan(&a.ID); err != nil {
		return errors.Wrapf(err, "upsert financing agency %s", a.Name)
	}
	return nil
}

func scanPartner(row pgx.CollectableRow) (partner.Partner, error) {
	var (
		p    partner.Partner
		kind string
	)
	err := row.Scan(&p.ID, &kind, &p.ParentID, &p.Name, &p.Email, &p.Siren, &p.Street, &p.City, &p.Zip, &p.CountryID)
	p.Kind = partner.Kind(kind)
	return p, err
}
