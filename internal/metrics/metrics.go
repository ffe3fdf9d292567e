// Package metrics exposes Prometheus metrics for health scoring and the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthscope/healthscope/pkg/account"
)

// Failure reasons for RecordFailure.
const (
	ReasonInvalid     = "invalid"
	ReasonPersistence = "persistence"
)

// scoreBuckets spans the 0-110 score range in steps of ten.
var scoreBuckets = prometheus.LinearBuckets(0, 10, 12)

// Manager owns the collectors and the registry they are registered on.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	snapshotsRecorded *prometheus.CounterVec
	recordFailures    *prometheus.CounterVec
	bucketTransitions *prometheus.CounterVec
	scoreDistribution prometheus.Histogram
	batchDuration     prometheus.Histogram
	batchAccounts     *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace. Defaults to "healthscope".
func WithNamespace(ns string) Option {
	return func(m *Manager) { m.namespace = ns }
}

// WithRegistry registers collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = reg }
}

// New creates a Manager on a custom registry so the default Go collectors
// stay out of the exposition.
func New(opts ...Option) *Manager {
	m := &Manager{namespace: "healthscope"}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)

	m.snapshotsRecorded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "snapshots_recorded_total",
		Help:      "Health snapshots persisted, by resulting bucket.",
	}, []string{"bucket"})

	m.recordFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "record_failures_total",
		Help:      "Health recomputations that did not produce a snapshot, by reason.",
	}, []string{"reason"})

	m.bucketTransitions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "bucket_transitions_total",
		Help:      "Accounts whose risk bucket changed between snapshots.",
	}, []string{"from", "to"})

	m.scoreDistribution = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "health_score",
		Help:      "Distribution of recorded health scores.",
		Buckets:   scoreBuckets,
	})

	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "recompute_batch_duration_seconds",
		Help:      "Wall time of portfolio recomputes.",
		Buckets:   prometheus.DefBuckets,
	})

	m.batchAccounts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "recompute_batch_accounts_total",
		Help:      "Accounts processed by portfolio recomputes, by outcome.",
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	return m
}

// Registry returns the registry backing the Manager.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SnapshotRecorded counts a persisted snapshot and, when previous is set and
// differs, a bucket transition.
func (m *Manager) SnapshotRecorded(previous account.Bucket, snap *account.HealthSnapshot) {
	if m == nil {
		return
	}
	m.snapshotsRecorded.WithLabelValues(string(snap.RiskLabel)).Inc()
	m.scoreDistribution.Observe(snap.Score)
	if previous != "" && previous != snap.RiskLabel {
		m.bucketTransitions.WithLabelValues(string(previous), string(snap.RiskLabel)).Inc()
	}
}

// RecordFailure counts a recompute that produced no snapshot.
func (m *Manager) RecordFailure(reason string) {
	if m == nil {
		return
	}
	m.recordFailures.WithLabelValues(reason).Inc()
}

// BatchCompleted observes a portfolio recompute.
func (m *Manager) BatchCompleted(elapsed time.Duration, updated, failed int) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(elapsed.Seconds())
	m.batchAccounts.WithLabelValues("updated").Add(float64(updated))
	m.batchAccounts.WithLabelValues("failed").Add(float64(failed))
}

// HTTPRequest observes a served request.
func (m *Manager) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
