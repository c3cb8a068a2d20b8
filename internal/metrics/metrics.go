// Package metrics provides Prometheus metrics for the conversion reporter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes tracked by RecordsTotal
const (
	OutcomeUnsubscribed = "unsubscribed"
	OutcomeDuplicate    = "duplicate"
	OutcomeInvalid      = "invalid"
	OutcomeReported     = "reported"
	OutcomeFailed       = "failed"
)

// Manager holds the reporter metrics registered on its own registry.
// A nil *Manager is valid and records nothing.
type Manager struct {
	registry *prometheus.Registry

	messagesProcessed prometheus.Counter
	messagesFailed    *prometheus.CounterVec
	messageDuration   prometheus.Histogram
	records           *prometheus.CounterVec
	batches           *prometheus.CounterVec
	dispatchDuration  prometheus.Histogram
}

// Option configures a Manager
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace overrides the metric namespace
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithHistogramBuckets overrides the latency histogram buckets
func WithHistogramBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// NewManager creates a Manager and registers its collectors on a private registry
func NewManager(opts ...Option) *Manager {
	o := options{
		namespace: "conversion_reporter",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Manager{
		registry: registry,
		messagesProcessed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "messages_processed_total",
			Help:      "Total number of queue messages processed successfully",
		}),
		messagesFailed: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "messages_failed_total",
			Help:      "Total number of queue messages that failed processing",
		}, []string{"reason"}),
		messageDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "message_duration_seconds",
			Help:      "Time spent processing one queue message",
			Buckets:   o.buckets,
		}),
		records: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "records_total",
			Help:      "Conversion records by processing outcome",
		}, []string{"outcome"}),
		batches: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "batches_dispatched_total",
			Help:      "Conversions API batches by result",
		}, []string{"result"}),
		dispatchDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Latency of one Conversions API batch request",
			Buckets:   o.buckets,
		}),
	}
}

// Registry returns the registry the collectors are registered on
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Manager) MessageProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.messagesProcessed.Inc()
	m.messageDuration.Observe(d.Seconds())
}

func (m *Manager) MessageFailed(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.messagesFailed.WithLabelValues(reason).Inc()
	m.messageDuration.Observe(d.Seconds())
}

// AddRecords counts n records with the given outcome
func (m *Manager) AddRecords(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(outcome).Add(float64(n))
}

// BatchDispatched records one batch result and its latency
func (m *Manager) BatchDispatched(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.batches.WithLabelValues(result).Inc()
	m.dispatchDuration.Observe(d.Seconds())
}
