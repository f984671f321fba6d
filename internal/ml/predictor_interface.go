// Package ml provides the sentiment inference pipeline: the pre-trained LSTM
// classifier loaded from its exported artifact, the decision layer that turns a
// probability into a label, and the Pipeline that ties preprocessing and
// classification together behind a single Predict call.
//
// Everything built at startup (vocabulary, model weights) is immutable, so a
// Pipeline can serve any number of concurrent callers without locking.
package ml

// Classifier maps a fixed-length token sequence to a positive-class
// probability in [0, 1].
type Classifier interface {
	Classify(seq []int) (float64, error)
}

// MetricsInterface defines metrics methods needed by the pipeline
type MetricsInterface interface {
	PredictionsInc(label string)
	FailuresInc(stage string)
	LatencyObserve(seconds float64)
	ScoresObserve(p float64)
	ModelAgeSet(seconds float64)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(seq []int) (float64, error)

// Classify calls f(seq).
func (f ClassifierFunc) Classify(seq []int) (float64, error) { return f(seq) }

type noopMetrics struct{}

func (noopMetrics) PredictionsInc(string)  {}
func (noopMetrics) FailuresInc(string)     {}
func (noopMetrics) LatencyObserve(float64) {}
func (noopMetrics) ScoresObserve(float64)  {}
func (noopMetrics) ModelAgeSet(float64)    {}
