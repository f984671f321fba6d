package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	failures    map[string]int
	latencies   int
	scores      []float64
	modelAge    float64
}

func (m *MockMetrics) PredictionsInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) FailuresInc(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[stage]++
}

func (m *MockMetrics) LatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) ScoresObserve(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, p)
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

// Predictions returns the number of successful predictions with the label.
func (m *MockMetrics) Predictions(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[label]
}

// Failures returns the number of failures recorded for the stage.
func (m *MockMetrics) Failures(stage string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[stage]
}

// Latencies returns how many latency samples were observed.
func (m *MockMetrics) Latencies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencies
}

// ModelAge returns the last model age set.
func (m *MockMetrics) ModelAge() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelAge
}
