package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/leasing-bridge/internal/domain/auth"
	"github.com/xenking/leasing-bridge/internal/domain/invoice"
	"github.com/xenking/leasing-bridge/internal/domain/order"
	"github.com/xenking/leasing-bridge/internal/domain/partner"
	"github.com/xenking/leasing-bridge/internal/domain/product"
	"github.com/xenking/leasing-bridge/internal/domain/quote"
	"github.com/xenking/leasing-bridge/internal/domain/tax"
	"github.com/xenking/leasing-bridge/internal/handler"
	"github.com/xenking/leasing-bridge/internal/storage/postgres"
	"github.com/xenking/leasing-bridge/pkg/health"
	"github.com/xenking/leasing-bridge/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricing, err := cfg.Pricing.Parse()
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	vatRate, err := cfg.Invoice.ParseVATRate()
	if err != nil {
		return errors.Wrap(err, "invoice config")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	partnerRepo := postgres.NewPartnerRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	tx := postgres.NewTransactor(pool)

	taxes, err := tax.LoadTable(ctx, postgres.NewTaxRepository(pool), pricing.Currency)
	if err != nil {
		return errors.Wrap(err, "load tax table")
	}
	if cfg.Pricing.TaxCategory != "" && !taxes.Has(cfg.Pricing.TaxCategory) {
		lg.Warn("Order line tax category is not configured, intake will fail until it is seeded",
			zap.String("tax_category", cfg.Pricing.TaxCategory),
		)
	}

	// Domain services.
	engine := quote.NewEngine(taxes, pricing.Currency,
		quote.WithAnnualRate(pricing.AnnualRate),
		quote.WithMarkup(pricing.Markup),
		quote.WithWarrantyPolicy(pricing.Policy),
	)
	orderService, err := order.NewService(engine, orderRepo, productRepo,
		partner.NewRegistry(partnerRepo, partnerRepo), tx,
		order.WithAtomicIntake(cfg.Intake.Atomic),
		order.WithTaxCategory(cfg.Pricing.TaxCategory),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	invoiceService := invoice.NewService(engine, pricing.Currency, orderService, productRepo,
		partnerRepo, invoiceRepo, tx,
		invoice.Config{VATRate: vatRate, Title: cfg.Invoice.Title},
	)

	h := handler.New(orderService, product.NewSyncService(productRepo), invoiceService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(handler.RecoverResponder),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument("leasing-bridge", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
