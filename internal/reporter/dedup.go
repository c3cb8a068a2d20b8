package reporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

const dedupLookupConcurrency = 8

// RecordFinder looks up stored conversion records by key
type RecordFinder interface {
	FindByKey(ctx context.Context, key domain.Key) (*domain.ConversionRecord, error)
}

// Deduplicator drops records that were already processed to a terminal state
type Deduplicator struct {
	store RecordFinder
	log   *zap.Logger
}

func NewDeduplicator(store RecordFinder, log *zap.Logger) *Deduplicator {
	return &Deduplicator{store: store, log: log}
}

// Exists reports whether key has a stored terminal record: delivered, or rejected as invalid.
// Stored dispatch failures do not count, so redelivery retries them.
func (d *Deduplicator) Exists(ctx context.Context, key domain.Key) (bool, error) {
	stored, err := d.store.FindByKey(ctx, key)
	if err != nil {
		return false, err
	}
	return isTerminal(stored), nil
}

func isTerminal(stored *domain.ConversionRecord) bool {
	return stored != nil && (stored.Reported == 1 || !stored.Valid)
}

// Filter collapses repeated keys to their first occurrence and drops keys that already exist.
// It returns the kept records in input order and the number dropped.
func (d *Deduplicator) Filter(ctx context.Context, records []domain.ConversionRecord) ([]domain.ConversionRecord, int, error) {
	distinct := collapseDuplicates(records)
	exists := make([]bool, len(distinct))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dedupLookupConcurrency)
	for i, rec := range distinct {
		g.Go(func() error {
			found, err := d.Exists(gctx, rec.Key())
			if err != nil {
				return fmt.Errorf("failed to look up conversion %s: %w", rec.Key(), err)
			}
			exists[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	kept := make([]domain.ConversionRecord, 0, len(distinct))
	for i, rec := range distinct {
		if exists[i] {
			d.log.Debug("Skipping already processed conversion", zap.String("key", rec.Key().String()))
			continue
		}
		kept = append(kept, rec)
	}

	dropped := len(records) - len(kept)
	if dropped > 0 {
		d.log.Info("Dropped duplicate conversions",
			zap.Int("inObject", len(records)-len(distinct)),
			zap.Int("alreadyProcessed", len(distinct)-len(kept)))
	}

	return kept, dropped, nil
}

func collapseDuplicates(records []domain.ConversionRecord) []domain.ConversionRecord {
	seen := make(map[domain.Key]struct{}, len(records))
	distinct := make([]domain.ConversionRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Key()]; ok {
			continue
		}
		seen[rec.Key()] = struct{}{}
		distinct = append(distinct, rec)
	}
	return distinct
}
