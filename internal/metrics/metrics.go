package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape path on a
// dedicated registry.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	CacheOpsTotal   *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	SessionsTotal   *prometheus.CounterVec
	FallbacksTotal  prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Scrape requests by outcome.",
		},
		[]string{"outcome"},
	)
	attemptDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_attempt_duration_seconds",
			Help:    "Latency of individual fetch attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cacheOps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cache_ops_total",
			Help: "Result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Retry attempts scheduled after failed fetches.",
		},
	)
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sessions_total",
			Help: "Browser session lifecycle events.",
		},
		[]string{"event"},
	)
	fallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_fallback_fetches_total",
			Help: "Fetches served by the plain HTTP fallback path.",
		},
	)

	registry.MustRegister(requests, attemptDuration, cacheOps, retries, sessions, fallbacks)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		AttemptDuration: attemptDuration,
		CacheOpsTotal:   cacheOps,
		RetriesTotal:    retries,
		SessionsTotal:   sessions,
		FallbacksTotal:  fallbacks,
	}
}

func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAttempt(d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheOpsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncSession(event string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}
