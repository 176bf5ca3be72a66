package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/leasing-bridge/internal/domain/quote"
	"github.com/xenking/leasing-bridge/internal/domain/tax"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (LEASING_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (LEASING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (LEASING_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing      PricingConfig
	Invoice      InvoiceConfig
	Intake       IntakeConfig
	RateLimit    RateLimitConfig
	Graceful     GracefulConfig
}

// PricingConfig controls the quote engine. Amounts are decimal strings.
type PricingConfig struct {
	AnnualRate     string `default:"0.05" usage:"Nominal yearly financing rate"`
	Markup         string `default:"2.2"  usage:"Factor applied to product list prices"`
	WarrantyPolicy string `default:"once" usage:"Warranty surcharge application: once or twice"`
	Currency       string `default:"EUR"  usage:"Currency code"`
	Rounding       string `default:"0.01" usage:"Currency rounding unit"`
	TaxCategory    string `default:"VAT20" usage:"Tax category of storefront order lines, empty for untaxed"`
}

// InvoiceConfig controls invoice defaults.
type InvoiceConfig struct {
	VATRate string `default:"0.2"     usage:"VAT rate of invoice totals"`
	Title   string `default:"Facture" usage:"Default invoice title"`
}

// IntakeConfig controls storefront order intake.
type IntakeConfig struct {
	Atomic bool `default:"true" usage:"Run each order intake in a single transaction"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// Pricing holds the parsed pricing settings.
type Pricing struct {
	AnnualRate decimal.Decimal
	Markup     decimal.Decimal
	Policy     quote.WarrantyPolicy
	Currency   tax.Currency
}

// Parse validates the pricing settings.
func (c PricingConfig) Parse() (Pricing, error) {
	rate, err := decimal.NewFromString(c.AnnualRate)
	if err != nil || rate.IsNegative() {
		return Pricing{}, errors.Errorf("invalid annual rate %q", c.AnnualRate)
	}
	markup, err := decimal.NewFromString(c.Markup)
	if err != nil || !markup.IsPositive() {
		return Pricing{}, errors.Errorf("invalid markup %q", c.Markup)
	}
	policy := quote.WarrantyPolicy(c.WarrantyPolicy)
	if policy != quote.WarrantyOnce && policy != quote.WarrantyTwice {
		return Pricing{}, errors.Errorf("invalid warranty policy %q", c.WarrantyPolicy)
	}
	rounding, err := decimal.NewFromString(c.Rounding)
	if err != nil {
		return Pricing{}, errors.Errorf("invalid rounding %q", c.Rounding)
	}
	currency, err := tax.NewCurrency(c.Currency, rounding)
	if err != nil {
		return Pricing{}, err
	}
	return Pricing{AnnualRate: rate, Markup: markup, Policy: policy, Currency: currency}, nil
}

// ParseVATRate returns the invoice VAT rate.
func (c InvoiceConfig) ParseVATRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.VATRate)
	if err != nil || rate.IsNegative() {
		return decimal.Zero, errors.Errorf("invalid vat rate %q", c.VATRate)
	}
	return rate, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return load(aconfig.Config{
		EnvPrefix: "LEASING",
		Files:     []string{"config.yaml", "/etc/leasing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func load(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set LEASING_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Pricing.Parse(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	if _, err := c.Invoice.ParseVATRate(); err != nil {
		return errors.Wrap(err, "invoice")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's LEASING_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
