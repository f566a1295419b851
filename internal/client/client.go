// Package client is a typed HTTP client for the scoring API.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"credit-scoring/internal/ml"
	"credit-scoring/internal/service"
	"credit-scoring/internal/storage"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

// New returns a client for the API at base.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring api: %d %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

type predictionBody struct {
	Probability *float64 `json:"probability"`
	Score       *float64 `json:"score"`
}

// Predict posts applicant fields to the endpoint of kind and returns the raw
// model output.
func (c *Client) Predict(ctx context.Context, kind ml.Kind, fields map[string]any) (float64, error) {
	path := "/predict/approval"
	if kind == ml.KindCredit {
		path = "/predict/credit"
	}

	out := &predictionBody{}
	if err := c.do(ctx, "POST", path, fields, out); err != nil {
		return 0, err
	}

	switch {
	case kind == ml.KindCredit && out.Score != nil:
		return *out.Score, nil
	case kind != ml.KindCredit && out.Probability != nil:
		return *out.Probability, nil
	}
	return 0, fmt.Errorf("scoring api: %s response has no result", kind)
}

// Scatter fetches a random applicant sample.
func (c *Client) Scatter(ctx context.Context) ([]storage.ScatterPoint, error) {
	var out []storage.ScatterPoint
	err := c.do(ctx, "GET", "/scatter", nil, &out)
	return out, err
}

// Health fetches the service health summary.
func (c *Client) Health(ctx context.Context) (service.HealthStatus, error) {
	var out service.HealthStatus
	err := c.do(ctx, "GET", "/health", nil, &out)
	return out, err
}

// ModelInfo describes the models the server has loaded.
func (c *Client) ModelInfo(ctx context.Context) ([]service.ModelInfo, error) {
	var out []service.ModelInfo
	err := c.do(ctx, "GET", "/model/info", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &errorBody{}
	req := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}
