package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"review-sentiment/internal/api"
	"review-sentiment/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StreamReply is one answer on the /ws endpoint. Exactly one of Result,
// Detail or Error is set.
type StreamReply struct {
	RequestID string
	Result    *ml.Result
	Detail    string
	Error     string
}

type streamFrame struct {
	RequestID           string  `json:"request_id"`
	Text                string  `json:"text"`
	Sentiment           string  `json:"sentiment"`
	Confidence          float64 `json:"confidence"`
	PositiveProbability float64 `json:"positive_probability"`
	Detail              string  `json:"detail"`
	Error               string  `json:"error"`
}

// Stream is a WebSocket session. Predict calls are serialized since the
// server answers frames in order.
type Stream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialStream opens a WebSocket session with the server.
func (c *Client) DialStream(ctx context.Context) (*Stream, error) {
	url := c.base + "/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(512 * 1024)
	log.Debug().Str("url", url).Msg("WebSocket stream connected")
	return &Stream{conn: conn}, nil
}

// Predict sends one text and waits for its answer.
func (s *Stream) Predict(ctx context.Context, text string) (*StreamReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	s.conn.SetWriteDeadline(deadline)
	s.conn.SetReadDeadline(deadline)

	if err := s.conn.WriteJSON(api.PredictRequest{Text: &text}); err != nil {
		return nil, fmt.Errorf("send failed: %w", err)
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseGoingAway) {
			return nil, errors.New("server closed the stream")
		}
		return nil, fmt.Errorf("receive failed: %w", err)
	}

	var f streamFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	reply := &StreamReply{RequestID: f.RequestID, Detail: f.Detail, Error: f.Error}
	if f.Sentiment != "" {
		reply.Result = &ml.Result{
			Text:                f.Text,
			Sentiment:           f.Sentiment,
			Confidence:          f.Confidence,
			PositiveProbability: f.PositiveProbability,
		}
	}
	return reply, nil
}

// Close sends a normal closure and releases the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
