package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream labels used across the client packages. Keep the set closed to
// bound metric cardinality.
const (
	UpstreamForecast   = "open_meteo"
	UpstreamPostalCode = "zippopotam"
	UpstreamReverseGeo = "nominatim"
	UpstreamGemini     = "gemini"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// External API call rate per upstream. Watch for: error vs success ratio per upstream.
	UpstreamCallsTotal *prometheus.CounterVec

	// External API latency per upstream. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Forecast cache hits. Hit rate = hits/(hits + open_meteo success calls).
	ForecastCacheHitsTotal *prometheus.CounterVec

	// Location lookups, split by source (zip, device). Watch for: traffic volume.
	LocationLookupsTotal *prometheus.CounterVec

	// Lookups whose result was discarded because a newer lookup superseded them.
	StaleLookupsDiscardedTotal prometheus.Counter

	// Chat turns appended to transcripts, by role.
	ChatTurnsTotal *prometheus.CounterVec

	// AI proxy requests by outcome (success, mocked, missing_prompt, upstream_error).
	AIProxyRequestsTotal *prometheus.CounterVec

	// Full weather context rebuilds. One per committed location change.
	ContextBuildsTotal prometheus.Counter

	// Browser sessions currently held in memory.
	SessionsActive prometheus.Gauge

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// In-flight requests remaining when shutdown began.
	ShutdownInFlight prometheus.Gauge
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
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of calls to external APIs",
		},
		[]string{"upstream", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "External API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream", "status"},
	)
	ForecastCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastCacheHitsTotal",
			Help: "Total number of forecast cache hits",
		},
		[]string{"backend"},
	)
	LocationLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationLookupsTotal",
			Help: "Total number of location lookups by source",
		},
		[]string{"source", "status"},
	)
	StaleLookupsDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleLookupsDiscardedTotal",
			Help: "Lookups discarded because a newer lookup started before they completed",
		},
	)
	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatTurnsTotal",
			Help: "Chat turns appended to session transcripts",
		},
		[]string{"role"},
	)
	AIProxyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiProxyRequestsTotal",
			Help: "Requests handled by the AI proxy endpoint, by outcome",
		},
		[]string{"outcome"},
	)
	ContextBuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contextBuildsTotal",
			Help: "Weather context text rebuilds (one per committed location change)",
		},
	)
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionsActive",
			Help: "Browser sessions currently held in memory",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Requests denied by the rate limiter",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per component (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions per component",
		},
		[]string{"component", "from", "to"},
	)
	ShutdownInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests remaining when graceful shutdown began",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
		UpstreamCallsTotal,
		UpstreamDuration,
		ForecastCacheHitsTotal,
		LocationLookupsTotal,
		StaleLookupsDiscardedTotal,
		ChatTurnsTotal,
		AIProxyRequestsTotal,
		ContextBuildsTotal,
		SessionsActive,
		RateLimitDeniedTotal,
		CircuitBreakerState,
		CircuitBreakerTransitionsTotal,
		ShutdownInFlight,
	)
}

// StatusLabel maps an HTTP status code onto the closed label set used by
// UpstreamCallsTotal.
func StatusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// MetricsHandler returns the HTTP handler serving the Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveUpstreamCall records one external API call with its latency.
func ObserveUpstreamCall(upstream, status string, seconds float64) {
	UpstreamCallsTotal.WithLabelValues(upstream, status).Inc()
	UpstreamDuration.WithLabelValues(upstream, status).Observe(seconds)
}

// RecordCircuitBreakerTransition records a state change for metrics.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerStateGauge sets the numeric breaker state for a component.
func SetCircuitBreakerStateGauge(component string, state float64) {
	CircuitBreakerState.WithLabelValues(component).Set(state)
}

// RecordShutdownInFlight records how many requests were still in flight when
// shutdown began.
func RecordShutdownInFlight(count int64) {
	ShutdownInFlight.Set(float64(count))
}
