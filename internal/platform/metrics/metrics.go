// Package metrics provides the Prometheus collectors for the labelling
// service. A nil *Manager is valid and records nothing, so components can
// be built without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	claimAttempts    *prometheus.CounterVec
	claimsRevoked    prometheus.Counter
	batchesCompleted prometheus.Counter
	labelsSubmitted  prometheus.Counter
	itemsUploaded    prometheus.Counter
	itemsAggregated  prometheus.Counter

	sweepRuns     prometheus.Counter
	sweepFailures prometheus.Counter
	sweepDuration prometheus.Histogram

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets the registerer the collectors are registered on.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates and registers the collectors. It panics if a collector
// is already registered on the chosen registry, so use one registry per
// Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "labelhive",
		subsystem:        "api",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.claimAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "claim_attempts_total",
		Help:      "Batch claim attempts by outcome",
	}, []string{"outcome"})

	m.claimsRevoked = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "claims_revoked_total",
		Help:      "Claims released by unclaim or by the expiry sweep",
	})

	m.batchesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_completed_total",
		Help:      "Claims marked completed",
	})

	m.labelsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "label_submissions_total",
		Help:      "Label submissions accepted",
	})

	m.itemsUploaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "items_uploaded_total",
		Help:      "Items partitioned into batches",
	})

	m.itemsAggregated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "items_aggregated_total",
		Help:      "Items whose consensus labels were written",
	})

	m.sweepRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "expiry_sweeps_total",
		Help:      "Expiry sweep runs",
	})

	m.sweepFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "expiry_sweep_failures_total",
		Help:      "Expired claims the sweep failed to revoke",
	})

	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "expiry_sweep_duration_seconds",
		Help:      "Duration of expiry sweep runs",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	return m
}

// RecordClaimAttempt counts a claim attempt; outcome is "ok" or an error kind.
func (m *Manager) RecordClaimAttempt(outcome string) {
	if m == nil {
		return
	}
	m.claimAttempts.WithLabelValues(outcome).Inc()
}

// RecordClaimRevoked counts a released claim.
func (m *Manager) RecordClaimRevoked() {
	if m == nil {
		return
	}
	m.claimsRevoked.Inc()
}

// RecordBatchCompleted counts a completed claim.
func (m *Manager) RecordBatchCompleted() {
	if m == nil {
		return
	}
	m.batchesCompleted.Inc()
}

// RecordLabelSubmission counts an accepted label submission.
func (m *Manager) RecordLabelSubmission() {
	if m == nil {
		return
	}
	m.labelsSubmitted.Inc()
}

// RecordItemsUploaded adds n to the uploaded items counter.
func (m *Manager) RecordItemsUploaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemsUploaded.Add(float64(n))
}

// RecordItemsAggregated adds n to the aggregated items counter.
func (m *Manager) RecordItemsAggregated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemsAggregated.Add(float64(n))
}

// RecordSweep records one sweep run.
func (m *Manager) RecordSweep(failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	if failed > 0 {
		m.sweepFailures.Add(float64(failed))
	}
	m.sweepDuration.Observe(elapsed.Seconds())
}

// RecordHTTPRequest records a served request.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
