package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"review-sentiment/internal/api"
	"review-sentiment/internal/common"
	"review-sentiment/internal/ml"

	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds /predict bodies independently of MaxTextLength so a
// huge payload is never decoded.
const maxBodyBytes = 1 << 20

func (s *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req api.PredictRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil || req.Text == nil {
		writeJSON(w, http.StatusUnprocessableEntity, api.DetailResponse{Detail: common.ErrMsgInvalidBody})
		return
	}

	if err := ValidateText(*req.Text, s.cfg.MaxTextLength); err != nil {
		s.rejected()
		writeJSON(w, http.StatusBadRequest, api.DetailResponse{Detail: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.predictor.Predict(ctx, *req.Text)
	if err != nil {
		requestID := RequestIDFromContext(r.Context())
		log.Error().Err(err).Str("request_id", requestID).Msg("Prediction failed")
		writeJSON(w, statusForInference(err), api.ErrorResponse{Error: err.Error(), RequestID: requestID})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// statusForInference maps a pipeline failure onto an HTTP status. Timeouts
// are reported as 504 so clients can tell them from model faults.
func statusForInference(err error) int {
	var ie *ml.InferenceError
	if errors.As(err, &ie) && ie.Stage == ml.StageContext && errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *ModelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:        "healthy",
		ModelLoaded:   true,
		ModelVersion:  s.metadata.Version,
		UptimeSeconds: s.clock.Since(s.startedAt).Round(time.Millisecond).Seconds(),
	})
}

func (s *ModelServer) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.InfoResponse{
		Message: common.DefaultServiceMessage,
		Docs:    common.DefaultDocsPath,
		Version: s.cfg.Version,
	})
}

func (s *ModelServer) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metadata)
}

func (s *ModelServer) rejected() {
	if s.metrics != nil {
		s.metrics.ValidationErrors.Inc()
	}
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
