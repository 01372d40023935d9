// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sugarfunge_api"

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	statuses           *prometheus.CounterVec

	identityRequests *prometheus.CounterVec
	ledgerUp         prometheus.Gauge
	refreshes        *prometheus.CounterVec
}

// New creates and registers the collectors. withRuntime adds the Go and
// process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"service", "method", "path"}),

		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extrinsic",
			Name:      "submissions_total",
			Help:      "Extrinsic submissions by call and result.",
		}, []string{"call", "result"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extrinsic",
			Name:      "submission_duration_seconds",
			Help:      "Time from submission to finality or failure.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
		}, []string{"call"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extrinsic",
			Name:      "status_updates_total",
			Help:      "Lifecycle notifications received from the node.",
		}, []string{"status"}),

		identityRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "requests_total",
			Help:      "Identity provider requests by operation and outcome.",
		}, []string{"operation", "success"}),
		ledgerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "up",
			Help:      "Whether the last ledger health check succeeded.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "metadata_refreshes_total",
			Help:      "Runtime metadata refreshes by outcome.",
		}, []string{"success"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.submissions,
		m.submissionDuration,
		m.statuses,
		m.identityRequests,
		m.ledgerUp,
		m.refreshes,
	)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// ObserveSubmission records a finished pipeline run.
func (m *Metrics) ObserveSubmission(call, result string, elapsed time.Duration) {
	m.submissions.WithLabelValues(call, result).Inc()
	m.submissionDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

// ObserveStatus records one lifecycle notification.
func (m *Metrics) ObserveStatus(status string) {
	m.statuses.WithLabelValues(status).Inc()
}

// RecordIdentityRequest records a call to the identity provider.
func (m *Metrics) RecordIdentityRequest(operation string, success bool) {
	m.identityRequests.WithLabelValues(operation, boolLabel(success)).Inc()
}

// SetLedgerUp records the ledger health.
func (m *Metrics) SetLedgerUp(up bool) {
	if up {
		m.ledgerUp.Set(1)
		return
	}
	m.ledgerUp.Set(0)
}

// RecordRefresh records a metadata refresh.
func (m *Metrics) RecordRefresh(success bool) {
	m.refreshes.WithLabelValues(boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
