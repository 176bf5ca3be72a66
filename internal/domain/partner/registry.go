package partner

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// DefaultCustomerName is used for customers pushed without a name.
const DefaultCustomerName = "Customer"

// Address is a postal address as sent by the storefront.
type Address struct {
	Street  string
	City    string
	Zip     string
	Country string
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a.Street == "" && a.City == "" && a.Zip == "" && a.Country == ""
}

// Customer identifies a storefront customer.
type Customer struct {
	Name  string
	Email string
	Siren string
}

// Registry resolves and creates partners for incoming orders.
type Registry struct {
	partners  Repository
	countries CountryRegistry
}

// NewRegistry creates a Registry over the given repositories.
func NewRegistry(partners Repository, countries CountryRegistry) *Registry {
	return &Registry{partners: partners, countries: countries}
}

// ResolveCountry returns the ID of the country matching input by ISO code or
// name. Unknown or empty input resolves to nil.
func (r *Registry) ResolveCountry(ctx context.Context, input string) (*int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	c, err := r.countries.Lookup(ctx, input)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			zctx.From(ctx).Debug("Country not resolved", zap.String("country", input))
			return nil, nil
		}
		return nil, errors.Wrapf(err, "lookup country %q", input)
	}
	return &c.ID, nil
}

// FindOrCreateCustomer returns the partner registered with the customer
// email, creating it with the billing address when absent. Customers without
// an email are always created.
func (r *Registry) FindOrCreateCustomer(ctx context.Context, c Customer, billing Address, countryID *int64) (*Partner, error) {
	if c.Email != "" {
		p, err := r.partners.FindByEmail(ctx, c.Email)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrap(err, "find partner by email")
		}
	}

	name := c.Name
	if name == "" {
		name = DefaultCustomerName
	}
	p := &Partner{
		Kind:      KindContact,
		Name:      name,
		Email:     c.Email,
		Siren:     c.Siren,
		Street:    billing.Street,
		City:      billing.City,
		Zip:       billing.Zip,
		CountryID: countryID,
	}
	if err := r.partners.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create partner")
	}
	zctx.From(ctx).Info("Customer created", zap.Int64("partner_id", p.ID))
	return p, nil
}

// CreateDelivery adds a delivery address under parent.
func (r *Registry) CreateDelivery(ctx context.Context, parent *Partner, addr Address, countryID *int64) (*Partner, error) {
	p := &Partner{
		Kind:      KindDelivery,
		ParentID:  &parent.ID,
		Name:      parent.Name,
		Street:    addr.Street,
		City:      addr.City,
		Zip:       addr.Zip,
		CountryID: countryID,
	}
	if err := r.partners.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create delivery partner")
	}
	return p, nil
}
