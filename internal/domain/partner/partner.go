// Package partner holds customers, their delivery addresses and the country
// registry used to resolve storefront addresses.
package partner

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a partner, country or financing agency does
// not exist.
var ErrNotFound = errors.New("not found")

// Kind distinguishes a customer record from its delivery addresses.
type Kind string

const (
	KindContact  Kind = "contact"
	KindDelivery Kind = "delivery"
)

// Partner is a customer or one of its addresses.
type Partner struct {
	ID        int64
	Kind      Kind
	ParentID  *int64
	Name      string
	Email     string
	Siren     string
	Street    string
	City      string
	Zip       string
	CountryID *int64
}

// Country is an entry of the country registry.
type Country struct {
	ID   int64
	Code string
	Name string
}

// FinancingAgency is a leasing company that is invoiced in place of the
// customer.
type FinancingAgency struct {
	ID        int64
	Name      string
	PartnerID int64
}

// Repository defines persistence operations for partners.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Partner, error)
	GetByID(ctx context.Context, id int64) (*Partner, error)
	Create(ctx context.Context, p *Partner) error
}

// CountryRegistry resolves countries.
type CountryRegistry interface {
	// Lookup matches an ISO code (case-insensitive) or an exact name.
	Lookup(ctx context.Context, codeOrName string) (*Country, error)
}

// AgencyRepository provides financing agency lookups.
type AgencyRepository interface {
	GetAgency(ctx context.Context, id int64) (*FinancingAgency, error)
}
