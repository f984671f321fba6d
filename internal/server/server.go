// Package server is the HTTP boundary of the sentiment service. It validates
// input, runs the inference pipeline and maps results and failures onto the
// JSON contract of the API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"review-sentiment/internal/api"
	"review-sentiment/internal/common"
	"review-sentiment/internal/metrics"
	"review-sentiment/internal/ml"
	"review-sentiment/web"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Predictor is what the server needs from the inference pipeline.
type Predictor interface {
	Predict(ctx context.Context, text string) (*ml.Result, error)
}

// Config holds the HTTP settings of the server.
type Config struct {
	Addr           string
	Version        string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxTextLength  int
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// StaticDir serves the front end from disk instead of the embedded copy.
	StaticDir string
	// Gatherer backs /metrics; the default gatherer when nil.
	Gatherer prometheus.Gatherer
}

// Option configures a ModelServer.
type Option func(*ModelServer)

// WithClock replaces the clock used for uptime, latency and rate limiting.
func WithClock(clock clockwork.Clock) Option {
	return func(s *ModelServer) { s.clock = clock }
}

// ModelServer provides the HTTP API for sentiment predictions.
type ModelServer struct {
	predictor Predictor
	metadata  *ml.ModelMetadata
	metrics   *metrics.Metrics
	cfg       Config
	clock     clockwork.Clock
	startedAt time.Time
	limiter   *IPRateLimiter
	upgrader  websocket.Upgrader
	handler   http.Handler
	server    *http.Server

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}
}

// NewModelServer wires routes and middleware. m may be nil.
func NewModelServer(predictor Predictor, metadata *ml.ModelMetadata, m *metrics.Metrics, cfg Config, opts ...Option) (*ModelServer, error) {
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if metadata == nil {
		metadata = &ml.ModelMetadata{Version: "unknown"}
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{common.DefaultCORSOrigin}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = common.DefaultRateLimitRPS
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = common.DefaultRateLimitBurst
	}
	if cfg.Version == "" {
		cfg.Version = common.DefaultServiceVersion
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &ModelServer{
		predictor: predictor,
		metadata:  metadata,
		metrics:   m,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		conns:     make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.clock.Now()
	s.limiter = NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, s.clock)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.CORSOrigins),
	}

	assets, err := s.assets()
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(s.accessLog)
	r.Handle("/predict", s.rateLimit(http.HandlerFunc(s.handlePredict))).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/info", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/ws", s.rateLimit(http.HandlerFunc(s.handleWebSocket))).Methods(http.MethodGet)
	r.Handle("/", fileHandler(assets, "index.html")).Methods(http.MethodGet)
	r.Handle("/docs", fileHandler(assets, "docs.html")).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(subFS(assets, "static"))))).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, api.DetailResponse{Detail: "Not Found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, api.DetailResponse{Detail: "Method Not Allowed"})
	})

	s.handler = requestID(recoverer(cors(cfg.CORSOrigins)(r)))
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if m != nil {
		m.ModelLoaded.Set(1)
	}
	return s, nil
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *ModelServer) Handler() http.Handler { return s.handler }

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *ModelServer) Start() error {
	log.Info().
		Str("addr", s.server.Addr).
		Str("model_version", s.metadata.Version).
		Msg("Starting sentiment server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes open WebSocket connections and
// waits for in-flight requests until ctx expires.
func (s *ModelServer) Shutdown(ctx context.Context) error {
	s.connsMu.Lock()
	for conn := range s.conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.connsMu.Unlock()

	if s.metrics != nil {
		s.metrics.ModelLoaded.Set(0)
	}
	return s.server.Shutdown(ctx)
}

func (s *ModelServer) assets() (fs.FS, error) {
	if s.cfg.StaticDir == "" {
		return web.Assets, nil
	}
	assets := os.DirFS(s.cfg.StaticDir)
	if _, err := fs.Stat(assets, "index.html"); err != nil {
		return nil, fmt.Errorf("static dir %s has no index.html: %w", s.cfg.StaticDir, err)
	}
	return assets, nil
}
