package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"review-sentiment/internal/api"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// wsReply is one answer frame. Exactly one of the embedded shapes is set.
type wsReply struct {
	RequestID string `json:"request_id,omitempty"`
	*predictionFrame
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

type predictionFrame struct {
	Text                string  `json:"text"`
	Sentiment           string  `json:"sentiment"`
	Confidence          float64 `json:"confidence"`
	PositiveProbability float64 `json:"positive_probability"`
}

// handleWebSocket answers every {"text": ...} frame with a prediction, a
// validation detail or an error. Frames are handled in order.
func (s *ModelServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	ip := clientIP(r)
	requestID := RequestIDFromContext(r.Context())

	s.track(conn, true)
	defer s.track(conn, false)

	conn.SetReadLimit(int64(maxBodyBytes))
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	log.Debug().Str("request_id", requestID).Str("remote_ip", ip).Msg("WebSocket client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("request_id", requestID).Msg("WebSocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if s.metrics != nil {
			s.metrics.WSMessages.Inc()
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := s.answerFrame(r.Context(), ip, data)
		reply.RequestID = requestID

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).Msg("WebSocket write failed")
			return
		}
	}
}

func (s *ModelServer) answerFrame(ctx context.Context, ip string, data []byte) wsReply {
	if !s.limiter.Allow(ip) {
		if s.metrics != nil {
			s.metrics.RateLimited.WithLabelValues("/ws").Inc()
		}
		return wsReply{Error: "rate limit exceeded"}
	}

	var req api.PredictRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Text == nil {
		return wsReply{Detail: "Frame must be JSON with a text field"}
	}
	if err := ValidateText(*req.Text, s.cfg.MaxTextLength); err != nil {
		s.rejected()
		return wsReply{Detail: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.predictor.Predict(ctx, *req.Text)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket prediction failed")
		return wsReply{Error: err.Error()}
	}
	return wsReply{predictionFrame: &predictionFrame{
		Text:                res.Text,
		Sentiment:           res.Sentiment,
		Confidence:          res.Confidence,
		PositiveProbability: res.PositiveProbability,
	}}
}

// pingLoop keeps idle connections alive. WriteControl is safe to call
// concurrently with the reader's writes.
func (s *ModelServer) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *ModelServer) track(conn *websocket.Conn, open bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if open {
		s.conns[conn] = struct{}{}
		if s.metrics != nil {
			s.metrics.WSConnections.Inc()
		}
		return
	}
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		conn.Close()
	}
	if s.metrics != nil {
		s.metrics.WSConnections.Dec()
	}
}

// originChecker allows browser WebSocket clients from the configured CORS
// origins. Requests without an Origin header are not from browsers.
func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
