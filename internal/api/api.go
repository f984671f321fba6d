// Package api holds the JSON shapes exchanged between the sentiment server
// and its clients. The prediction itself is ml.Result.
package api

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// PredictRequest is the body of POST /predict and of each /ws frame.
type PredictRequest struct {
	Text *string `json:"text"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	ModelLoaded   bool    `json:"model_loaded"`
	ModelVersion  string  `json:"model_version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// InfoResponse is the body of GET /api/info.
type InfoResponse struct {
	Message string `json:"message"`
	Docs    string `json:"docs"`
	Version string `json:"version"`
}

// DetailResponse carries a client error, shown to users as-is.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ErrorResponse carries a server side failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
