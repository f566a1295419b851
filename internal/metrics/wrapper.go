package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCounter is the counter surface handed to packages that should not
// import prometheus.
type MetricsCounter interface {
	Inc()
}

// MetricsWrapper adapts Metrics to the narrow interfaces the service and
// server depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionInc(model string) {
	w.m.Predictions.WithLabelValues(model).Inc()
}

func (w *MetricsWrapper) PredictionFailureInc(model, reason string) {
	w.m.PredictionFailures.WithLabelValues(model, reason).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(model string, seconds float64) {
	w.m.PredictionLatency.WithLabelValues(model).Observe(seconds)
}

// PredictionValueObserve records a result in the histogram for its model.
func (w *MetricsWrapper) PredictionValueObserve(model string, v float64) {
	switch model {
	case "credit":
		w.m.CreditScores.Observe(v)
	case "approval":
		w.m.ApprovalProbabilities.Observe(v)
	}
}

func (w *MetricsWrapper) ModelAgeSet(model string, seconds float64) {
	w.m.ModelAge.WithLabelValues(model).Set(seconds)
}

func (w *MetricsWrapper) CacheHitInc() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMissInc() {
	w.m.CacheMisses.Inc()
}

func (w *MetricsWrapper) ScatterRequests() MetricsCounter {
	return &CounterWrapper{w.m.ScatterRequests}
}

func (w *MetricsWrapper) ErrorsTotal() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

func (w *MetricsWrapper) HTTPRequestInc(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}
