package metrics

// MetricsWrapper adapts Metrics to the interface the inference pipeline
// records into.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) FailuresInc(stage string) {
	w.m.InferenceFailures.WithLabelValues(stage).Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.InferenceLatency.Observe(seconds)
}

func (w *MetricsWrapper) ScoresObserve(p float64) {
	w.m.PredictionScores.Observe(p)
}

func (w *MetricsWrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}
