// Package metrics provides Prometheus metrics collection for the sentiment service.
// It defines the inference, HTTP and connection metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inference metrics
	Predictions       *prometheus.CounterVec // Successful predictions by label
	InferenceFailures *prometheus.CounterVec // Failed predictions by pipeline stage
	InferenceLatency  prometheus.Histogram   // End-to-end pipeline latency
	PredictionScores  prometheus.Histogram   // Distribution of positive probabilities
	ModelAge          prometheus.Gauge       // Age of the loaded model in seconds
	ModelLoaded       prometheus.Gauge       // 1 once the model is ready

	// HTTP metrics
	HTTPRequests     *prometheus.CounterVec   // Requests by path, method and status
	HTTPDuration     *prometheus.HistogramVec // Request duration by path
	ValidationErrors prometheus.Counter       // Requests rejected by input validation
	RateLimited      *prometheus.CounterVec   // Requests rejected by the rate limiter

	// WebSocket metrics
	WSConnections prometheus.Gauge   // Currently open WebSocket connections
	WSMessages    prometheus.Counter // Frames received on WebSocket connections
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentiment_predictions_total",
			Help: "Total number of successful predictions by label",
		}, []string{"label"}),
		InferenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentiment_inference_failures_total",
			Help: "Total number of failed predictions by pipeline stage",
		}, []string{"stage"}),
		InferenceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentiment_inference_latency_seconds",
			Help:    "Inference latency in seconds (preprocessing and forward pass)",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentiment_positive_probability",
			Help:    "Distribution of positive-class probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_model_age_seconds",
			Help: "Age of the loaded model in seconds",
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sentiment_model_loaded",
			Help: "Whether the model is loaded and ready (1) or not (0)",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		ValidationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentiment_validation_errors_total",
			Help: "Total number of requests rejected by input validation",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"path"}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Number of open WebSocket connections",
		}),
		WSMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Total number of WebSocket frames received",
		}),
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(path, method, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(path, method, status).Inc()
	m.HTTPDuration.WithLabelValues(path).Observe(seconds)
}
