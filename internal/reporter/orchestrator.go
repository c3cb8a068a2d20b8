package reporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/conversion-reporting-service/internal/capi"
	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
	"github.com/BarkinBalci/conversion-reporting-service/internal/metrics"
	s3storage "github.com/BarkinBalci/conversion-reporting-service/internal/storage/s3"
)

// ObjectReader reads uploaded conversion objects
type ObjectReader interface {
	ReadConversions(ctx context.Context, bucket, key string) ([]domain.ConversionRecord, error)
}

// ConversionStore is the durable store the orchestrator deduplicates against and writes to
type ConversionStore interface {
	RecordFinder
	Upsert(ctx context.Context, records []domain.ConversionRecord) error
}

// BatchDispatcher sends planned batches and reports a result per batch
type BatchDispatcher interface {
	Dispatch(ctx context.Context, batches []capi.Batch) []capi.BatchResult
}

// Config holds the orchestrator settings
type Config struct {
	DefaultBucket     string
	TrafficSource     string
	MaxEventsPerBatch int
	// Now overrides the clock used by the freshness rule
	Now func() time.Time
}

// Dependencies are the collaborators of the orchestrator
type Dependencies struct {
	Reader        ObjectReader
	Subscriptions SubscriptionSource
	Store         ConversionStore
	Pixels        PixelSource
	Dispatcher    BatchDispatcher
	Metrics       *metrics.Manager
}

// Summary counts records by outcome for one object
type Summary struct {
	Read         int
	Unsubscribed int
	Duplicates   int
	Invalid      int
	Reported     int
	Failed       int
}

// Orchestrator runs the reporting pipeline for queue messages
type Orchestrator struct {
	config        Config
	reader        ObjectReader
	subscriptions *SubscriptionFilter
	dedup         *Deduplicator
	classifier    *Classifier
	planner       *capi.Planner
	dispatcher    BatchDispatcher
	store         ConversionStore
	metrics       *metrics.Manager
	log           *zap.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(config Config, deps Dependencies, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		config:        config,
		reader:        deps.Reader,
		subscriptions: NewSubscriptionFilter(deps.Subscriptions, log),
		dedup:         NewDeduplicator(deps.Store, log),
		classifier:    NewClassifier(deps.Pixels, config.TrafficSource, config.Now, log),
		planner:       capi.NewPlanner(config.MaxEventsPerBatch),
		dispatcher:    deps.Dispatcher,
		store:         deps.Store,
		metrics:       deps.Metrics,
		log:           log,
	}
}

// ProcessMessage processes every object referenced by a queue message body.
// A nil error means all objects were persisted and the message can be deleted.
func (o *Orchestrator) ProcessMessage(ctx context.Context, body []byte) error {
	start := time.Now()

	refs, err := ParseMessage(body, o.config.DefaultBucket)
	if err != nil {
		o.metrics.MessageFailed("malformed", time.Since(start))
		return err
	}

	for _, ref := range refs {
		if _, err := o.ProcessObject(ctx, ref); err != nil {
			reason := "processing"
			if errors.Is(err, ErrMalformedMessage) {
				reason = "malformed"
			}
			o.metrics.MessageFailed(reason, time.Since(start))
			return err
		}
	}

	o.metrics.MessageProcessed(time.Since(start))
	return nil
}

// ProcessObject runs the pipeline for one object and persists every surviving record
func (o *Orchestrator) ProcessObject(ctx context.Context, ref ObjectRef) (Summary, error) {
	var summary Summary
	source := ParseSourceKey(ref.Key)

	log := o.log.With(
		zap.String("bucket", ref.Bucket),
		zap.String("key", ref.Key),
		zap.String("network", string(source.Network)),
		zap.String("job", source.Job),
		zap.String("account", source.Account))

	records, err := o.reader.ReadConversions(ctx, ref.Bucket, ref.Key)
	if err != nil {
		var decodeErr *s3storage.DecodeError
		if errors.As(err, &decodeErr) {
			return summary, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		return summary, err
	}
	summary.Read = len(records)
	log.Info("Read conversions", zap.Int("count", len(records)))

	records = withDefaultNetwork(records, source.Network)

	subscribed, err := o.subscriptions.Filter(ctx, records)
	if err != nil {
		return summary, err
	}
	summary.Unsubscribed = len(records) - len(subscribed)

	fresh, duplicates, err := o.dedup.Filter(ctx, subscribed)
	if err != nil {
		return summary, err
	}
	summary.Duplicates = duplicates

	if len(fresh) == 0 {
		log.Info("No new conversions to report")
		o.recordSummary(summary)
		return summary, nil
	}

	valid, invalid, err := o.classifier.Classify(ctx, fresh)
	if err != nil {
		return summary, err
	}

	plan := o.planner.Plan(valid)
	results := o.dispatch(ctx, plan.Batches)
	reported, failed := Reconcile(plan.Records, results)

	final := make([]domain.ConversionRecord, 0, len(reported)+len(failed)+len(invalid))
	final = append(final, reported...)
	final = append(final, failed...)
	for _, rec := range invalid {
		rec = rec.WithLandings()
		rec.Reported = 0
		final = append(final, rec)
	}

	if err := o.store.Upsert(ctx, final); err != nil {
		return summary, fmt.Errorf("failed to persist conversions: %w", err)
	}

	summary.Invalid = len(invalid)
	summary.Reported = len(reported)
	summary.Failed = len(failed)
	o.recordSummary(summary)

	log.Info("Conversions processed",
		zap.Int("reported", summary.Reported),
		zap.Int("failed", summary.Failed),
		zap.Int("invalid", summary.Invalid),
		zap.Int("batches", len(plan.Batches)))

	return summary, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, batches []capi.Batch) []capi.BatchResult {
	if len(batches) == 0 {
		return nil
	}

	results := o.dispatcher.Dispatch(ctx, batches)
	for _, res := range results {
		o.metrics.BatchDispatched(res.Err == nil, res.Duration)
		if res.Err != nil {
			o.log.Warn("Batch dispatch failed",
				zap.String("pixelId", res.Batch.PixelID),
				zap.Int("events", len(res.Batch.Events)),
				zap.Int("records", len(res.Batch.Sources)),
				zap.Error(res.Err))
		}
	}
	return results
}

func (o *Orchestrator) recordSummary(s Summary) {
	o.metrics.AddRecords(metrics.OutcomeUnsubscribed, s.Unsubscribed)
	o.metrics.AddRecords(metrics.OutcomeDuplicate, s.Duplicates)
	o.metrics.AddRecords(metrics.OutcomeInvalid, s.Invalid)
	o.metrics.AddRecords(metrics.OutcomeReported, s.Reported)
	o.metrics.AddRecords(metrics.OutcomeFailed, s.Failed)
}

// withDefaultNetwork fills in the network of records that carry none and normalizes the rest
func withDefaultNetwork(records []domain.ConversionRecord, network domain.Network) []domain.ConversionRecord {
	out := make([]domain.ConversionRecord, len(records))
	for i, rec := range records {
		rec.Network = domain.ParseNetwork(string(rec.Network))
		if rec.Network == "" {
			rec.Network = network
		}
		out[i] = rec
	}
	return out
}
