package service

import (
	"errors"
	"sync"
	"time"

	"credit-scoring/internal/features"
	"credit-scoring/internal/ml"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	failures    map[string]int
	latencies   int
	values      []float64
	modelAge    map[string]float64
	cacheHits   int
	cacheMisses int
}

func newMockMetrics() *MockMetrics {
	return &MockMetrics{
		predictions: make(map[string]int),
		failures:    make(map[string]int),
		modelAge:    make(map[string]float64),
	}
}

func (m *MockMetrics) PredictionInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[model]++
}

func (m *MockMetrics) PredictionFailureInc(model, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[model+"/"+reason]++
}

func (m *MockMetrics) PredictionLatencyObserve(string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) PredictionValueObserve(_ string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, v)
}

func (m *MockMetrics) ModelAgeSet(model string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge[model] = seconds
}

func (m *MockMetrics) CacheHitInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) CacheMissInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

// fakeScorer derives features like the real pipelines but scores with a
// fixed linear function.
type fakeScorer struct {
	kind    ml.Kind
	created time.Time
	vocab   features.Vocabulary
	fail    bool

	mu    sync.Mutex
	calls int
}

func newCreditScorer() *fakeScorer {
	return &fakeScorer{kind: ml.KindCredit, created: time.Now().Add(-time.Hour)}
}

func newApprovalScorer() *fakeScorer {
	return &fakeScorer{
		kind:    ml.KindApproval,
		created: time.Now().Add(-2 * time.Hour),
		vocab: features.Vocabulary{
			features.ColMaritalStatus:     {"divorced", "married", "single"},
			features.ColEducation:         {"bachelor", "high school", "master"},
			features.ColResidentialStatus: {"other", "own", "rent"},
		},
	}
}

func (f *fakeScorer) Kind() ml.Kind { return f.kind }

func (f *fakeScorer) RequiredFields() []string {
	if f.kind == ml.KindApproval {
		return features.ApprovalRequiredFields
	}
	return features.CreditRequiredFields
}

func (f *fakeScorer) Derive(rec features.ApplicantRecord) (features.FeatureVector, error) {
	if f.kind == ml.KindApproval {
		return features.DeriveApproval(rec, f.vocab)
	}
	return features.Derive(rec)
}

func (f *fakeScorer) Metadata() ml.Metadata {
	return ml.Metadata{
		Kind:       f.kind,
		CreatedAt:  f.created,
		TrainRows:  100,
		TestRows:   25,
		Evaluation: &ml.Evaluation{TestRows: 25, Accuracy: 0.8},
		Importance: []ml.FeatureWeight{{Name: features.ColAge, Importance: 1}},
	}
}

func (f *fakeScorer) Predict(fv features.FeatureVector) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.fail {
		return 0, errors.New("transform width mismatch")
	}
	if f.kind == ml.KindApproval {
		return fv.Numeric[features.ColCreditScore] / 1000, nil
	}
	return 500 + fv.Numeric[features.ColAge] + 100*fv.Numeric[features.ColDebtToIncomeRatio], nil
}

func (f *fakeScorer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
