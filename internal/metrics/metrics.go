// Package metrics exposes Prometheus collectors for the data-access layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors the stores, fetcher and orchestrator report into
type Metrics struct {
	registry *prometheus.Registry

	connectionsIssued *prometheus.CounterVec
	connectionsFailed *prometheus.CounterVec
	imageCache        *prometheus.CounterVec
	imageFetchErrors  *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
}

// New creates collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcgallery",
			Name:      "connection_issued_total",
			Help:      "Authenticated store handles issued, including re-issuance after the lifetime window.",
		}, []string{"store"}),
		connectionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcgallery",
			Name:      "connection_failed_total",
			Help:      "Failed handle acquisitions by error code.",
		}, []string{"store", "code"}),
		imageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcgallery",
			Name:      "image_cache_total",
			Help:      "Image cache lookups by result.",
		}, []string{"result"}),
		imageFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcgallery",
			Name:      "image_fetch_errors_total",
			Help:      "Image fetch failures by error code.",
		}, []string{"code"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qcgallery",
			Name:      "query_duration_seconds",
			Help:      "Store query latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	m.registry.MustRegister(
		m.connectionsIssued,
		m.connectionsFailed,
		m.imageCache,
		m.imageFetchErrors,
		m.queryDuration,
	)
	return m
}

// Registry returns the registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ConnectionIssued(store string) {
	if m == nil {
		return
	}
	m.connectionsIssued.WithLabelValues(store).Inc()
}

func (m *Metrics) ConnectionFailed(store, code string) {
	if m == nil {
		return
	}
	m.connectionsFailed.WithLabelValues(store, code).Inc()
}

func (m *Metrics) ImageCacheHit() {
	if m == nil {
		return
	}
	m.imageCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) ImageCacheMiss() {
	if m == nil {
		return
	}
	m.imageCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) ImageFetchFailed(code string) {
	if m == nil {
		return
	}
	m.imageFetchErrors.WithLabelValues(code).Inc()
}

// ObserveQuery records how long operation took since start
func (m *Metrics) ObserveQuery(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
