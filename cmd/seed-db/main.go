package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/auth"
	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/tax"
	"github.com/xenking/leasing-bridge/internal/storage/postgres"
)

var countries = []partner.Country{
	{Code: "FR", Name: "France"},
	{Code: "BE", Name: "Belgium"},
	{Code: "LU", Name: "Luxembourg"},
	{Code: "CH", Name: "Switzerland"},
	{Code: "MC", Name: "Monaco"},
	{Code: "DE", Name: "Germany"},
	{Code: "ES", Name: "Spain"},
	{Code: "IT", Name: "Italy"},
}

var taxCategories = []tax.Category{
	{Code: "VAT20", Name: "TVA 20%", Mode: tax.ModeExclusive, Rate: decimal.RequireFromString("0.2")},
	{Code: "VAT10", Name: "TVA 10%", Mode: tax.ModeExclusive, Rate: decimal.RequireFromString("0.1")},
	{Code: "VAT55", Name: "TVA 5.5%", Mode: tax.ModeExclusive, Rate: decimal.RequireFromString("0.055")},
}

// agencies are keyed by the contact email of their invoice partner.
var agencies = []partner.Partner{
	{Name: "Grenke Location", Email: "financement@grenke.example"},
	{Name: "Leasecom", Email: "financement@leasecom.example"},
	{Name: "BNP Paribas Leasing Solutions", Email: "financement@bnpleasing.example"},
}

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or LEASING_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or LEASING_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("LEASING_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or LEASING_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("LEASING_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	partners := postgres.NewPartnerRepository(pool)
	tx := postgres.NewTransactor(pool)

	return tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := seedCountries(ctx, partners); err != nil {
			return errors.Wrap(err, "seed countries")
		}
		if err := seedTaxes(ctx, postgres.NewTaxRepository(pool)); err != nil {
			return errors.Wrap(err, "seed tax categories")
		}
		if err := seedAgencies(ctx, partners); err != nil {
			return errors.Wrap(err, "seed financing agencies")
		}
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
		return nil
	})
}

func seedCountries(ctx context.Context, repo *postgres.PartnerRepository) error {
	for _, c := range countries {
		if err := repo.UpsertCountry(ctx, &c); err != nil {
			return err
		}
		slog.Info("upserted country", slog.String("code", c.Code), slog.Int64("id", c.ID))
	}
	return nil
}

func seedTaxes(ctx context.Context, repo *postgres.TaxRepository) error {
	for _, c := range taxCategories {
		if err := repo.UpsertCategory(ctx, c); err != nil {
			return err
		}
		slog.Info("upserted tax category", slog.String("code", c.Code), slog.String("rate", c.Rate.String()))
	}
	return nil
}

func seedAgencies(ctx context.Context, repo *postgres.PartnerRepository) error {
	for _, a := range agencies {
		p, err := repo.FindByEmail(ctx, a.Email)
		switch {
		case errors.Is(err, partner.ErrNotFound):
			p = &partner.Partner{Kind: partner.KindContact, Name: a.Name, Email: a.Email}
			if err := repo.Create(ctx, p); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		agency := &partner.FinancingAgency{Name: a.Name, PartnerID: p.ID}
		if err := repo.UpsertAgency(ctx, agency); err != nil {
			return err
		}
		slog.Info("upserted financing agency", slog.String("name", agency.Name), slog.Int64("id", agency.ID))
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding storefront API key")

	info := &auth.APIKeyInfo{
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "WooCommerce storefront",
		Scopes:  []string{"orders", "products"},
	}
	if err := repo.Create(ctx, info); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))
	return nil
}
