// Command catalog-import loads gzipped NDJSON product feeds into the catalog.
//
// Every line of a feed is a product object with the fields accepted by the
// product API (sku, name, description, sales_price, discount). Products are
// upserted by SKU. A SKU listed by several feeds is resolved by -on-conflict:
// "last" keeps the record of the last feed on the command line, "skip"
// leaves the SKU untouched.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/leasing-bridge/internal/domain/product"
	"github.com/xenking/leasing-bridge/internal/storage/postgres"
)

const progressEvery = 1000

type conflictPolicy string

const (
	conflictLast conflictPolicy = "last"
	conflictSkip conflictPolicy = "skip"
)

// upserter is implemented by *postgres.ProductRepository.
type upserter interface {
	Upsert(ctx context.Context, p *product.Product) error
}

type stats struct {
	upserted  int
	invalid   int
	conflicts int
}

func main() {
	var (
		databaseURL string
		onConflict  string
		capacity    uint
		fpr         float64
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&onConflict, "on-conflict", string(conflictLast), "SKUs listed by several feeds: last or skip")
	flag.UintVar(&capacity, "bloom-capacity", 1_000_000, "expected SKUs per feed")
	flag.Float64Var(&fpr, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	feeds := flag.Args()
	if len(feeds) == 0 {
		slog.Error("usage: catalog-import [flags] feed.ndjson.gz ...")
		os.Exit(2)
	}
	policy := conflictPolicy(onConflict)
	if policy != conflictLast && policy != conflictSkip {
		slog.Error("invalid --on-conflict", slog.String("value", onConflict))
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, feeds, policy, filterConfig{capacity: capacity, fpr: fpr}); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, databaseURL string, feeds []string, policy conflictPolicy, cfg filterConfig) error {
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	shared := map[string]uint{}
	if len(feeds) > 1 {
		var err error
		if shared, err = sharedSKUs(ctx, feeds, cfg); err != nil {
			return errors.Wrap(err, "find shared skus")
		}
		slog.Info("skus listed by several feeds", slog.Int("count", len(shared)))
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	st, err := importFeeds(ctx, postgres.NewProductRepository(pool), feeds, shared, policy)
	if err != nil {
		return err
	}
	slog.Info("import summary",
		slog.Int("upserted", st.upserted),
		slog.Int("invalid", st.invalid),
		slog.Int("conflicts_skipped", st.conflicts),
	)
	return nil
}

// importFeeds upserts the feeds in order. Shared SKUs are written only from
// the last feed listing them, or not at all under conflictSkip. Invalid
// lines are logged and counted.
func importFeeds(
	ctx context.Context,
	repo upserter,
	feeds []string,
	shared map[string]uint,
	policy conflictPolicy,
) (stats, error) {
	var st stats
	for i, path := range feeds {
		err := streamFeed(ctx, path, func(n int, line []byte) error {
			r, err := parseRecord(line)
			if err != nil {
				st.invalid++
				slog.Warn("invalid feed line",
					slog.String("feed", path),
					slog.Int("line", n),
					slog.String("error", err.Error()),
				)
				return nil
			}

			if mask, ok := shared[r.SKU]; ok {
				if policy == conflictSkip || lastFeed(mask) != i {
					st.conflicts++
					return nil
				}
			}

			if err := repo.Upsert(ctx, r.product()); err != nil {
				return errors.Wrapf(err, "%s:%d", path, n)
			}
			st.upserted++
			if st.upserted%progressEvery == 0 {
				slog.Info("import progress", slog.Int("upserted", st.upserted))
			}
			return nil
		})
		if err != nil {
			return st, errors.Wrapf(err, "import feed %d", i+1)
		}
	}
	return st, nil
}

// lastFeed returns the index of the highest feed bit in mask.
func lastFeed(mask uint) int {
	return bits.Len(mask) - 1
}
