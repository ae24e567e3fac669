package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-viz-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate by endpoint kind (forecast, archive). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Open-Meteo latency. Watch for: p95 approaching the upstream timeout.
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by category (timeout, network, upstream_5xx, parsing, circuit_open...).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Provider responses with an unexpected shape. Any sustained rate means the contract drifted.
	NormalizationErrorsTotal *prometheus.CounterVec

	// Render attempts by renderer (external, delegated) and outcome (success, process_exit, timeout...).
	RenderTotal *prometheus.CounterVec

	// Render latency. For the external renderer this is process wall time.
	RenderDuration *prometheus.HistogramVec

	// External render processes currently running. Bounded by render.max_concurrent.
	RendersInFlight prometheus.Gauge

	// Renders rejected by admission control. Watch for: sustained rejects = raise max_concurrent.
	RenderRejectedTotal prometheus.Counter

	// Circuit breaker transitions. Watch for: flapping between open and half_open.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker state: 0 closed, 1 open, 2 half_open.
	CircuitBreakerState *prometheus.GaugeVec

	trafficGaugesOnce sync.Once
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
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"endpoint", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Open-Meteo API failures by error category",
		},
		[]string{"category"},
	)
	NormalizationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "normalizationErrorsTotal",
			Help: "Provider responses rejected by the normalizer, by kind",
		},
		[]string{"kind"},
	)
	RenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renderTotal",
			Help: "Render attempts by renderer and outcome",
		},
		[]string{"renderer", "outcome"},
	)
	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "renderDurationSeconds",
			Help:    "Render latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"renderer"},
	)
	RendersInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rendersInFlight",
			Help: "External render processes currently running",
		},
	)
	RenderRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renderRejectedTotal",
			Help: "Renders rejected because no render slot was free",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half_open)",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		NormalizationErrorsTotal,
		RenderTotal, RenderDuration, RendersInFlight, RenderRejectedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// RegisterTrafficGauges exposes the sliding-window counters used by /health.
// Call from main after config load with the same window the health check uses.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Pipeline outcomes (success + error + rejected) in the health window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "renderRejectsInWindow",
					Help: "Render admissions rejected in the health window",
				},
				func() float64 { return float64(traffic.RejectedCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(circuitBreakerStateValue(to))
}

func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open", "half_open":
		return 2
	default:
		return 0
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
