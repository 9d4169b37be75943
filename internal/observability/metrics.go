package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Acquisition pipeline outcomes by path (rich, legacy) and result.
	AcquisitionsTotal *prometheus.CounterVec

	// Upstream call rate per endpoint family. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per endpoint. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Rich-endpoint failures that triggered the legacy pair. A high rate means
	// the One Call subscription is broken and every acquisition pays double.
	FallbackTotal prometheus.Counter

	// Swallowed air quality failures. These never fail an acquisition.
	AirQualityFailuresTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker open state per endpoint family (1 = open).
	BreakerOpen *prometheus.GaugeVec

	// Local store read/write failures by operation.
	StoreErrorsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	AcquisitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acquisitionsTotal",
			Help: "Weather acquisitions by serving path and result",
		},
		[]string{"path", "result"},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Upstream API calls by endpoint family and outcome",
		},
		[]string{"endpoint", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)
	FallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fallbackTotal",
			Help: "Acquisitions where the rich endpoint failed and the legacy pair was used",
		},
	)
	AirQualityFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "airQualityFailuresTotal",
			Help: "Best-effort air quality fetches that failed (never fatal)",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	BreakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstreamBreakerOpen",
			Help: "Circuit breaker open state per endpoint family (1 = open)",
		},
		[]string{"endpoint"},
	)
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeErrorsTotal",
			Help: "Local store failures by operation (get, set, delete)",
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		AcquisitionsTotal, UpstreamCallsTotal, UpstreamDuration,
		FallbackTotal, AirQualityFailuresTotal,
		RateLimitDeniedTotal, BreakerOpen, StoreErrorsTotal,
	)
}

// RecordBreakerState updates the breaker gauge for an endpoint family.
func RecordBreakerState(endpoint string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	BreakerOpen.WithLabelValues(endpoint).Set(v)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
