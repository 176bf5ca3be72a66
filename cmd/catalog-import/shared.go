package main

import (
	"context"
	"log/slog"
	"math/bits"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

// filterConfig sizes the per-feed bloom filters.
type filterConfig struct {
	capacity uint
	fpr      float64
}

// sharedSKUs returns the SKUs listed by two or more feeds. Pass 1 builds a
// bloom filter per feed; pass 2 re-reads every feed, keeps the SKUs that
// another feed's filter may contain and confirms them by exact bitmask
// merge, so filter false positives never reach the result.
func sharedSKUs(ctx context.Context, feeds []string, cfg filterConfig) (map[string]uint, error) {
	if len(feeds) > bits.UintSize {
		return nil, errors.Errorf("at most %d feeds are supported", bits.UintSize)
	}

	filters := make([]*bloom.BloomFilter, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.capacity, cfg.fpr)
			count := 0
			err := streamFeed(gctx, path, func(_ int, line []byte) error {
				if sku := skuOf(line); sku != "" {
					filter.AddString(sku)
					count++
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "index feed %d", i+1)
			}
			slog.Info("pass 1 complete", slog.String("feed", path), slog.Int("skus", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]map[string]uint, len(feeds))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			found := make(map[string]uint)
			bit := uint(1) << uint(i)
			err := streamFeed(gctx, path, func(_ int, line []byte) error {
				sku := skuOf(line)
				if sku == "" {
					return nil
				}
				for j, f := range filters {
					if j != i && f.TestString(sku) {
						found[sku] |= bit
						break
					}
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "scan feed %d", i+1)
			}
			slog.Info("pass 2 complete", slog.String("feed", path), slog.Int("candidates", len(found)))
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range candidates {
		for sku, mask := range found {
			merged[sku] |= mask
		}
	}
	for sku, mask := range merged {
		if bits.OnesCount(mask) < 2 {
			delete(merged, sku)
		}
	}
	return merged, nil
}
