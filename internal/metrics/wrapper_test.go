package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.PredictionInc("credit")
	wrapper.PredictionInc("credit")
	wrapper.PredictionInc("approval")

	if got := testutil.ToFloat64(metrics.Predictions.WithLabelValues("credit")); got != 2 {
		t.Errorf("Expected 2 credit predictions, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Predictions.WithLabelValues("approval")); got != 1 {
		t.Errorf("Expected 1 approval prediction, got %f", got)
	}

	wrapper.PredictionFailureInc("credit", "invalid_category")
	if got := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues("credit", "invalid_category")); got != 1 {
		t.Errorf("Expected 1 failure, got %f", got)
	}
}

func TestMetricsWrapper_Observations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.PredictionValueObserve("credit", 712)
	wrapper.PredictionValueObserve("approval", 0.8)
	wrapper.PredictionValueObserve("approval", 0.1)
	wrapper.PredictionValueObserve("unknown", 1)
	wrapper.PredictionLatencyObserve("credit", 0.002)

	if n := testutil.CollectAndCount(metrics.CreditScores); n != 1 {
		t.Errorf("Expected 1 credit score series, got %d", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, m := range mf.Metric {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] += h.GetSampleCount()
			}
		}
	}
	if counts["credit_score_predictions"] != 1 {
		t.Errorf("Expected 1 credit score observation, got %d", counts["credit_score_predictions"])
	}
	if counts["approval_probability_predictions"] != 2 {
		t.Errorf("Expected 2 approval observations, got %d", counts["approval_probability_predictions"])
	}
	if counts["prediction_latency_seconds"] != 1 {
		t.Errorf("Expected 1 latency observation, got %d", counts["prediction_latency_seconds"])
	}
}

func TestMetricsWrapper_GaugesAndCounters(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.ModelAgeSet("credit", 3600)
	if got := testutil.ToFloat64(metrics.ModelAge.WithLabelValues("credit")); got != 3600 {
		t.Errorf("Expected model age 3600, got %f", got)
	}

	wrapper.CacheHitInc()
	wrapper.CacheMissInc()
	wrapper.CacheMissInc()
	if got := testutil.ToFloat64(metrics.CacheHits); got != 1 {
		t.Errorf("Expected 1 cache hit, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMisses); got != 2 {
		t.Errorf("Expected 2 cache misses, got %f", got)
	}

	wrapper.ScatterRequests().Inc()
	wrapper.ErrorsTotal().Inc()
	wrapper.HTTPRequestInc("/predict", 400)
	if got := testutil.ToFloat64(metrics.ScatterRequests); got != 1 {
		t.Errorf("Expected 1 scatter request, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.ErrorsTotal); got != 1 {
		t.Errorf("Expected 1 error, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "400")); got != 1 {
		t.Errorf("Expected 1 request, got %f", got)
	}
}

func TestCounterWrapper_DirectUsage(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter",
	})
	wrapper := &CounterWrapper{c: counter}

	wrapper.Inc()
	wrapper.Inc()
	if got := testutil.ToFloat64(counter); got != 2 {
		t.Errorf("Expected counter value 2, got %f", got)
	}
}

func TestNewWithRegistry_Isolated(t *testing.T) {
	// Two registries must not conflict on metric names.
	NewWithRegistry(prometheus.NewRegistry())
	NewWithRegistry(prometheus.NewRegistry())
}
