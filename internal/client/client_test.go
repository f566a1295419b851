package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credit-scoring/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/predict/credit", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, ok := body["Age"]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing required field: Age"})
			return
		}
		json.NewEncoder(w).Encode(map[string]float64{"score": 712.5})
	})
	mux.HandleFunc("/predict/approval", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]float64{"probability": 0})
	})
	mux.HandleFunc("/scatter", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"Credit_Score":700,"Annual_Income":50000,"Loan_Approval_Status":1}]`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"healthy":true,"models":["credit"],"prediction_count":3}`))
	})
	mux.HandleFunc("/model/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"kind":"credit","train_rows":120}]`))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestPredict(t *testing.T) {
	ts := newTestServer(t)
	c := New(ts.URL+"/", time.Second)

	score, err := c.Predict(context.Background(), ml.KindCredit, map[string]any{"Age": 30})
	require.NoError(t, err)
	assert.Equal(t, 712.5, score)

	// a zero probability is a result, not an absent one
	p, err := c.Predict(context.Background(), ml.KindApproval, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
}

func TestPredict_APIError(t *testing.T) {
	ts := newTestServer(t)
	c := New(ts.URL, time.Second)

	_, err := c.Predict(context.Background(), ml.KindCredit, map[string]any{"Income": 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "missing required field: Age", apiErr.Message)
}

func TestGetEndpoints(t *testing.T) {
	ts := newTestServer(t)
	c := New(ts.URL, 0)
	ctx := context.Background()

	points, err := c.Scatter(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 700.0, points[0].CreditScore)
	assert.Equal(t, 1, points[0].LoanApprovalStatus)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, int64(3), health.PredictionCount)

	info, err := c.ModelInfo(ctx)
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, ml.KindCredit, info[0].Kind)
	assert.Equal(t, 120, info[0].TrainRows)
}

func TestNotFound(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := New(ts.URL, time.Second).Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Health(context.Background())
	assert.Error(t, err)
}
