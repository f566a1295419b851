// Package metrics provides Prometheus metrics for the scoring service.
// It covers prediction volume, failures and latency per model, the loaded
// model's age, cache effectiveness and the scatter endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics, labelled by model ("credit" or "approval")
	Predictions           *prometheus.CounterVec   // Successful predictions
	PredictionFailures    *prometheus.CounterVec   // Rejected or failed predictions, by reason
	PredictionLatency     *prometheus.HistogramVec // Handle latency in seconds
	CreditScores          prometheus.Histogram     // Distribution of predicted credit scores
	ApprovalProbabilities prometheus.Histogram     // Distribution of predicted approval probabilities
	ModelAge              *prometheus.GaugeVec     // Seconds since the loaded artifact was trained

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// HTTP metrics
	ScatterRequests prometheus.Counter     // Requests served by /scatter
	HTTPRequests    *prometheus.CounterVec // Requests by route and status code

	// System metrics
	ErrorsTotal prometheus.Counter // Unexpected internal errors
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of successful predictions",
		}, []string{"model"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions by reason",
		}, []string{"model", "reason"}),
		PredictionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Prediction latency in seconds (validation to result)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"model"}),
		CreditScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "credit_score_predictions",
			Help:    "Distribution of predicted credit scores",
			Buckets: []float64{300, 400, 500, 579, 669, 739, 799, 850},
		}),
		ApprovalProbabilities: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "approval_probability_predictions",
			Help:    "Distribution of predicted approval probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}, []string{"model"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_hits_total",
			Help: "Total number of predictions served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_cache_misses_total",
			Help: "Total number of cache lookups that missed",
		}),
		ScatterRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "scatter_requests_total",
			Help: "Total number of scatter sample requests",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of unexpected errors",
		}),
	}
}
