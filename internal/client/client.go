// Package client talks to a running sentiment server over HTTP and
// WebSocket. It is used by sentictl and by the evaluation harness when a
// remote model is being measured.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review-sentiment/internal/api"
	"review-sentiment/internal/ml"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("sentiment api: %d %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("sentiment api: %d %s", e.StatusCode, e.Message)
}

// apiErrorBody covers both error shapes the server emits.
type apiErrorBody struct {
	Detail    string `json:"detail"`
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

type Client struct {
	base string
	rest *resty.Client
}

// New creates a client for the server at base, e.g. http://localhost:8000.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	base = strings.TrimRight(base, "/")
	r.SetBaseURL(base)
	r.SetHeader("Accept", "application/json")
	return &Client{base: base, rest: r}
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string { return c.base }

// Predict classifies one review.
func (c *Client) Predict(ctx context.Context, text string) (*ml.Result, error) {
	res := &ml.Result{}
	err := c.do(ctx, "POST", "/predict", api.PredictRequest{Text: &text}, res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Health reports the server's liveness and model version.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	res := &api.HealthResponse{}
	if err := c.do(ctx, "GET", "/health", nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Info returns the service banner.
func (c *Client) Info(ctx context.Context) (*api.InfoResponse, error) {
	res := &api.InfoResponse{}
	if err := c.do(ctx, "GET", "/api/info", nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ModelInfo returns metadata of the loaded model.
func (c *Client) ModelInfo(ctx context.Context) (*ml.ModelMetadata, error) {
	res := &ml.ModelMetadata{}
	if err := c.do(ctx, "GET", "/model/info", nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	errBody := &apiErrorBody{}
	req := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(errBody)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := errBody.Detail
		if msg == "" {
			msg = errBody.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		reqID := errBody.RequestID
		if reqID == "" {
			reqID = resp.Header().Get(api.RequestIDHeader)
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg, RequestID: reqID}
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
