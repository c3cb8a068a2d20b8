package reporter

import (
	"github.com/BarkinBalci/conversion-reporting-service/internal/capi"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// Reconcile marks each record reported when every batch carrying its events succeeded.
// Records with no events in any batch count as delivered.
func Reconcile(records []domain.ConversionRecord, results []capi.BatchResult) (reported, failed []domain.ConversionRecord) {
	failedKeys := make(map[domain.Key]struct{})
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		for _, key := range res.Batch.Sources {
			failedKeys[key] = struct{}{}
		}
	}

	for _, rec := range records {
		if _, ok := failedKeys[rec.Key()]; ok {
			rec.Reported = 0
			failed = append(failed, rec)
			continue
		}
		rec.Reported = 1
		reported = append(reported, rec)
	}
	return reported, failed
}
