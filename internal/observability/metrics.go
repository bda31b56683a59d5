package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/fwi-predictor/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Successful predictions by risk band. Watch for: shifts toward High/Extreme.
	PredictionsTotal *prometheus.CounterVec

	// Failed predictions. reason=invalid_field is client input, reason=inference is ours.
	PredictionErrorsTotal *prometheus.CounterVec

	// Transform + predict latency, cache excluded. Should stay in the microsecond range.
	InferenceDuration prometheus.Histogram

	// Distribution of predicted FWI values. Buckets follow the risk band edges.
	PredictedFWI prometheus.Histogram

	// Result cache lookups. result=hit|miss. Hit rate = hit/(hit+miss).
	CacheRequestsTotal *prometheus.CounterVec

	// Result cache errors by operation (get, set).
	CacheErrorsTotal *prometheus.CounterVec

	// Memcached circuit breaker state: 0 closed, 1 open, 2 half-open.
	CacheBreakerState prometheus.Gauge

	// Memcached circuit breaker transitions. Frequent open/half_open flapping means a sick cache.
	CacheBreakerTransitionsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Constant 1, labelled with the loaded artifact fingerprint.
	ArtifactInfo *prometheus.GaugeVec

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
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionsTotal",
			Help: "Total number of successful FWI predictions by risk level",
		},
		[]string{"riskLevel"},
	)
	PredictionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionErrorsTotal",
			Help: "Total number of failed predictions by reason",
		},
		[]string{"reason"},
	)
	InferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inferenceDurationSeconds",
			Help:    "Scaler transform plus model predict latency in seconds",
			Buckets: []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001},
		},
	)
	PredictedFWI = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "predictedFwi",
			Help:    "Predicted Fire Weather Index values",
			Buckets: []float64{0, 5, 15, 30, 50},
		},
	)
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheRequestsTotal",
			Help: "Prediction cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Prediction cache errors by operation",
		},
		[]string{"operation"},
	)
	CacheBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cacheBreakerState",
			Help: "Memcached circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
	)
	CacheBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheBreakerTransitionsTotal",
			Help: "Memcached circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ArtifactInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artifactInfo",
			Help: "Loaded scaler/model pair; value is always 1",
		},
		[]string{"fingerprint"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		PredictionsTotal, PredictionErrorsTotal, InferenceDuration, PredictedFWI,
		CacheRequestsTotal, CacheErrorsTotal,
		CacheBreakerState, CacheBreakerTransitionsTotal,
		RateLimitDeniedTotal,
		ArtifactInfo,
	)
}

// RegisterTrafficGauges registers sliding-window gauges backed by the traffic tracker.
// Call from main after config load with the overload window.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "predictRequestsInWindow",
					Help: "Requests hitting the rate-limited prediction routes in the sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordPrediction records a successful prediction.
func RecordPrediction(riskLevel string, fwi float64) {
	PredictionsTotal.WithLabelValues(riskLevel).Inc()
	PredictedFWI.Observe(fwi)
}

// RecordCacheBreakerTransition records a breaker state change. state is the numeric value of the new state.
func RecordCacheBreakerTransition(from, to string, state int) {
	CacheBreakerTransitionsTotal.WithLabelValues(from, to).Inc()
	CacheBreakerState.Set(float64(state))
}

// SetArtifactFingerprint publishes the loaded artifact pair.
func SetArtifactFingerprint(fingerprint string) {
	ArtifactInfo.Reset()
	ArtifactInfo.WithLabelValues(fingerprint).Set(1)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
