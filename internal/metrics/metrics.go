package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPServerHandlingSeconds is a histogram for HTTP request latencies
	HTTPServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of HTTP requests handled by the server.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "code"},
	)

	// InferenceLatencySeconds is a histogram for inference-only latency
	InferenceLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Histogram of inference latency (seconds) excluding HTTP overhead.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PredictionsTotal counts successful predictions by label
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful predictions by predicted label.",
		},
		[]string{"label"},
	)

	// PredictionErrorsTotal counts failed predictions by error kind
	PredictionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_errors_total",
			Help: "Total number of failed predictions by kind (validation, unavailable, inference).",
		},
		[]string{"kind"},
	)

	// CacheLookupsTotal counts prediction cache lookups by result
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_cache_lookups_total",
			Help: "Total number of prediction cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	// ModelLoaded is a gauge indicating whether a model is loaded
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "Whether a model is loaded (1 = loaded, 0 = absent).",
		},
	)

	// ConfigUpdatesTotal counts runtime configuration updates
	ConfigUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "config_updates_total",
			Help: "Total number of runtime configuration updates.",
		},
	)
)

// RecordHTTPLatency records the latency of an HTTP request
func RecordHTTPLatency(method, route, code string, seconds float64) {
	HTTPServerHandlingSeconds.WithLabelValues(method, route, code).Observe(seconds)
}

// RecordInferenceLatency records the latency of an inference call
func RecordInferenceLatency(seconds float64) {
	InferenceLatencySeconds.Observe(seconds)
}

// RecordPrediction increments the prediction counter for label
func RecordPrediction(label string) {
	PredictionsTotal.WithLabelValues(label).Inc()
}

// RecordPredictionError increments the error counter for kind
func RecordPredictionError(kind string) {
	PredictionErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheLookup increments the cache lookup counter for result
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordConfigUpdate increments the config update counter
func RecordConfigUpdate() {
	ConfigUpdatesTotal.Inc()
}

// SetModelLoaded sets the model gauge to loaded
func SetModelLoaded() {
	ModelLoaded.Set(1)
}

// SetModelAbsent sets the model gauge to absent
func SetModelAbsent() {
	ModelLoaded.Set(0)
}
