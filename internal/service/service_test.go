package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"credit-scoring/internal/cache"
	"credit-scoring/internal/features"
	"credit-scoring/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creditRequest() map[string]any {
	return map[string]any{
		"Age":                        32.0,
		"Marital_Status":             "Single",
		"Dependents":                 0.0,
		"Employment_Status":          "Employed",
		"Annual_Income":              80000.0,
		"Monthly_Expenses":           2000.0,
		"Total_Existing_Loan_Amount": 15000.0,
		"Outstanding_Debt":           5000.0,
		"Existing_Loans":             2.0,
		"Bank_Account_History":       10.0,
		"Residential_Status":         "Own",
		"Loan_History":               1.0,
	}
}

func approvalRequest() map[string]any {
	return map[string]any{
		"Age":                        45.0,
		"Marital_Status":             "Married",
		"Dependents":                 2.0,
		"Education":                  "Master",
		"Annual_Income":              90000.0,
		"Total_Existing_Loan_Amount": 5000.0,
		"Credit_Score":               710.0,
		"Outstanding_Debt":           1000.0,
		"Residential_Status":         "Rent",
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeScorer, *fakeScorer) {
	t.Helper()
	credit, approval := newCreditScorer(), newApprovalScorer()
	svc, err := New([]ml.Scorer{credit, approval}, opts...)
	require.NoError(t, err)
	return svc, credit, approval
}

func TestHandle_Credit(t *testing.T) {
	m := newMockMetrics()
	svc, _, _ := newTestService(t, WithMetrics(m))

	res, err := svc.Handle(context.Background(), ml.KindCredit, creditRequest())
	require.NoError(t, err)

	// 500 + Age + 100*Debt_to_Income_Ratio; no rounding.
	assert.InDelta(t, 538.25, res.Value, 1e-12)
	assert.Equal(t, ml.KindCredit, res.Kind)
	assert.False(t, res.Cached)
	assert.Equal(t, "Poor", res.Tier())
	_, ok := res.Band()
	assert.False(t, ok)

	assert.Equal(t, 1, m.predictions["credit"])
	assert.Equal(t, 1, m.latencies)
	assert.Equal(t, []float64{res.Value}, m.values)
}

func TestHandle_Approval(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Handle(context.Background(), ml.KindApproval, approvalRequest())
	require.NoError(t, err)
	assert.InDelta(t, 0.71, res.Value, 1e-12)

	band, ok := res.Band()
	require.True(t, ok)
	assert.Equal(t, "Good", band.Label)
	assert.Empty(t, res.Tier())
}

func TestHandle_ZeroIncomeIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := creditRequest()
	req["Annual_Income"] = 0.0
	req["Existing_Loans"] = 0.0

	res, err := svc.Handle(context.Background(), ml.KindCredit, req)
	require.NoError(t, err)
	assert.InDelta(t, 532.0, res.Value, 1e-12)
}

func TestHandle_MissingField(t *testing.T) {
	m := newMockMetrics()
	svc, credit, _ := newTestService(t, WithMetrics(m))

	req := creditRequest()
	delete(req, "Outstanding_Debt")

	_, err := svc.Handle(context.Background(), ml.KindCredit, req)
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Outstanding_Debt", missing.Field)
	assert.True(t, IsValidation(err))
	assert.Zero(t, credit.Calls())
	assert.Equal(t, 1, m.failures["credit/invalid_request"])
}

func TestHandle_NullCountsAsMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := creditRequest()
	req["Age"] = nil

	_, err := svc.Handle(context.Background(), ml.KindCredit, req)
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Age", missing.Field)
}

func TestHandle_InvalidCategory(t *testing.T) {
	svc, credit, _ := newTestService(t)

	req := creditRequest()
	req["Marital_Status"] = "Divorced"

	_, err := svc.Handle(context.Background(), ml.KindCredit, req)
	var catErr *features.InvalidCategoryError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "Marital_Status", catErr.Field)
	assert.Equal(t, "Divorced", catErr.Value)
	assert.True(t, IsValidation(err))
	assert.Zero(t, credit.Calls())
}

func TestHandle_InvalidValue(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"text in numeric field", "Annual_Income", "lots"},
		{"number in text field", "Marital_Status", 3.0},
		{"object", "Age", map[string]any{"years": 32}},
		{"flag out of range", "Loan_History", 2.0},
		{"bool in numeric field", "Age", true},
		{"bool in text field", "Residential_Status", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)

			req := creditRequest()
			req[tt.field] = tt.value

			_, err := svc.Handle(context.Background(), ml.KindCredit, req)
			var ive *features.InvalidValueError
			require.ErrorAs(t, err, &ive)
			assert.Equal(t, tt.field, ive.Field)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestHandle_StringNumbersAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := creditRequest()
	req["Age"] = "32"
	req["Annual_Income"] = json.Number("80000")
	req["Loan_History"] = "yes"

	res, err := svc.Handle(context.Background(), ml.KindCredit, req)
	require.NoError(t, err)
	assert.InDelta(t, 538.25, res.Value, 1e-12)
}

func TestHandle_ExtraFieldsIgnored(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := creditRequest()
	req["Applicant_ID"] = "A-17"
	req["Education"] = 42.0

	_, err := svc.Handle(context.Background(), ml.KindCredit, req)
	assert.NoError(t, err)
}

func TestHandle_UnknownModel(t *testing.T) {
	svc, err := New([]ml.Scorer{newCreditScorer()})
	require.NoError(t, err)

	_, err = svc.Handle(context.Background(), ml.KindApproval, approvalRequest())
	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.True(t, IsValidation(err))
}

func TestHandle_ModelFailureIsNotValidation(t *testing.T) {
	m := newMockMetrics()
	credit := newCreditScorer()
	credit.fail = true
	svc, err := New([]ml.Scorer{credit}, WithMetrics(m))
	require.NoError(t, err)

	_, err = svc.Handle(context.Background(), ml.KindCredit, creditRequest())
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Equal(t, 1, m.failures["credit/model"])
	assert.Contains(t, svc.Health().LastError, "width mismatch")
}

func TestHandle_CancelledContext(t *testing.T) {
	svc, credit, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Handle(ctx, ml.KindCredit, creditRequest())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, credit.Calls())
}

func TestHandle_Cache(t *testing.T) {
	m := newMockMetrics()
	svc, credit, _ := newTestService(t, WithCache(cache.NewMemoryCache(10, time.Minute)), WithMetrics(m))

	first, err := svc.Handle(context.Background(), ml.KindCredit, creditRequest())
	require.NoError(t, err)
	second, err := svc.Handle(context.Background(), ml.KindCredit, creditRequest())
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 1, credit.Calls())
	assert.Equal(t, 1, m.cacheHits)
	assert.Equal(t, 1, m.cacheMisses)
	assert.Equal(t, 2, m.predictions["credit"])

	// a different request is a miss
	req := creditRequest()
	req["Age"] = 40.0
	third, err := svc.Handle(context.Background(), ml.KindCredit, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, credit.Calls())
}

func TestHandle_Deterministic(t *testing.T) {
	svc, _, _ := newTestService(t)

	first, err := svc.Handle(context.Background(), ml.KindApproval, approvalRequest())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.Handle(context.Background(), ml.KindApproval, approvalRequest())
		require.NoError(t, err)
		assert.Equal(t, first.Value, again.Value)
	}
}

func TestHandle_Concurrent(t *testing.T) {
	svc, _, _ := newTestService(t, WithCache(cache.NewMemoryCache(100, time.Minute)))

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := creditRequest()
			req["Age"] = float64(20 + i%10)
			if _, err := svc.Handle(context.Background(), ml.KindCredit, req); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, int64(50), svc.Health().PredictionCount)
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New([]ml.Scorer{newCreditScorer(), newCreditScorer()})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "duplicate"))

	m := newMockMetrics()
	svc, err := New([]ml.Scorer{newApprovalScorer(), newCreditScorer()}, WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, []ml.Kind{ml.KindCredit, ml.KindApproval}, svc.Kinds())
	assert.InDelta(t, 3600, m.modelAge["credit"], 60)
	assert.InDelta(t, 7200, m.modelAge["approval"], 60)

	sc, ok := svc.Scorer(ml.KindApproval)
	require.True(t, ok)
	assert.Equal(t, ml.KindApproval, sc.Kind())
}

func TestHealthAndModelInfo(t *testing.T) {
	svc, _, _ := newTestService(t, WithCache(cache.NewMemoryCache(10, time.Minute)))

	_, err := svc.Handle(context.Background(), ml.KindCredit, creditRequest())
	require.NoError(t, err)
	_, err = svc.Handle(context.Background(), ml.KindCredit, creditRequest())
	require.NoError(t, err)
	req := creditRequest()
	delete(req, "Age")
	_, err = svc.Handle(context.Background(), ml.KindCredit, req)
	require.Error(t, err)

	h := svc.Health()
	assert.True(t, h.Healthy)
	assert.Equal(t, int64(2), h.PredictionCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.InDelta(t, 0.5, h.CacheHitRate, 1e-12)
	assert.Equal(t, []ml.Kind{ml.KindCredit, ml.KindApproval}, h.Models)

	info := svc.ModelInfo()
	require.Len(t, info, 2)
	assert.Equal(t, ml.KindCredit, info[0].Kind)
	assert.Equal(t, features.CreditRequiredFields, info[0].Fields)
	assert.Equal(t, 100, info[0].TrainRows)
	assert.Len(t, info[0].TopFeatures, 1)
	assert.Greater(t, info[1].AgeSeconds, info[0].AgeSeconds)
}
