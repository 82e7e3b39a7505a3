package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for intake,
// reconstruction and HTTP traffic.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	intakeAccepted prometheus.Counter
	intakeRejected *prometheus.CounterVec

	runsStarted  prometheus.Counter
	runsArchived prometheus.Counter
	runsFailed   prometheus.Counter
	runDuration  prometheus.Histogram

	arksMinted prometheus.Counter

	cacheLatency prometheus.Observer
	cacheWrite   prometheus.Observer
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	intakeAccepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intake_contributions_accepted_total",
		Help: "Contributions accepted through intake",
	})

	intakeRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_contributions_rejected_total",
		Help: "Contributions rejected at intake, by reason",
	}, []string{"reason"})

	runsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconstruction_runs_started_total",
		Help: "Reconstruction runs started",
	})

	runsArchived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconstruction_runs_archived_total",
		Help: "Reconstruction runs archived with a bound ARK",
	})

	runsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconstruction_runs_failed_total",
		Help: "Reconstruction runs that ended in Error",
	})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconstruction_run_duration_seconds",
		Help:    "Wall time of finished reconstruction runs",
		Buckets: prometheus.ExponentialBuckets(60, 2, 10),
	})

	arksMinted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arks_minted_total",
		Help: "Archival identifiers minted",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache lookups that hit",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache lookups that missed",
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		intakeAccepted, intakeRejected,
		runsStarted, runsArchived, runsFailed, runDuration,
		arksMinted,
		cacheLatency, cacheWrite, cacheHits, cacheMisses,
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		intakeAccepted:  intakeAccepted,
		intakeRejected:  intakeRejected,
		runsStarted:     runsStarted,
		runsArchived:    runsArchived,
		runsFailed:      runsFailed,
		runDuration:     runDuration,
		arksMinted:      arksMinted,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// RecordHTTPRequest observes a completed HTTP request.
func (m *MetricsService) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordIntakeAccepted counts an accepted contribution.
func (m *MetricsService) RecordIntakeAccepted() {
	if m == nil {
		return
	}
	m.intakeAccepted.Inc()
}

// RecordIntakeRejected counts a rejected contribution with its reason.
func (m *MetricsService) RecordIntakeRejected(reason string) {
	if m == nil {
		return
	}
	m.intakeRejected.WithLabelValues(reason).Inc()
}

// RecordRunStarted counts a started reconstruction run.
func (m *MetricsService) RecordRunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
}

// RecordRunArchived counts a successfully archived run.
func (m *MetricsService) RecordRunArchived(duration time.Duration) {
	if m == nil {
		return
	}
	m.runsArchived.Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RecordRunFailed counts a failed run.
func (m *MetricsService) RecordRunFailed(duration time.Duration) {
	if m == nil {
		return
	}
	m.runsFailed.Inc()
	m.runDuration.Observe(duration.Seconds())
}

// RecordArkMinted counts a minted archival identifier.
func (m *MetricsService) RecordArkMinted() {
	if m == nil {
		return
	}
	m.arksMinted.Inc()
}

// RecordCacheOperation observes a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite observes a cache set.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
