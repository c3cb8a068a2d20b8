package reporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// SubscriptionSource lists the campaigns currently subscribed to conversion reporting
type SubscriptionSource interface {
	ListSubscribedCampaignIDs(ctx context.Context) (map[string]struct{}, error)
}

// SubscriptionFilter keeps records whose campaign is subscribed.
// The subscription set is fetched on every call.
type SubscriptionFilter struct {
	source SubscriptionSource
	log    *zap.Logger
}

func NewSubscriptionFilter(source SubscriptionSource, log *zap.Logger) *SubscriptionFilter {
	return &SubscriptionFilter{source: source, log: log}
}

// Filter returns the subscribed records in input order
func (f *SubscriptionFilter) Filter(ctx context.Context, records []domain.ConversionRecord) ([]domain.ConversionRecord, error) {
	subscribed, err := f.source.ListSubscribedCampaignIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed campaigns: %w", err)
	}

	kept := filterSubscribed(records, subscribed)

	f.log.Info("Filtered conversions by subscription",
		zap.Int("subscribedCampaigns", len(subscribed)),
		zap.Int("received", len(records)),
		zap.Int("kept", len(kept)))

	return kept, nil
}

func filterSubscribed(records []domain.ConversionRecord, subscribed map[string]struct{}) []domain.ConversionRecord {
	kept := make([]domain.ConversionRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := subscribed[rec.CampaignID]; ok {
			kept = append(kept, rec)
		}
	}
	return kept
}
