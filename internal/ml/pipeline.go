package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"review-sentiment/internal/features"

	"github.com/rs/zerolog/log"
)

// Pipeline stages reported in InferenceError.
const (
	StageContext    = "context"
	StagePreprocess = "preprocess"
	StageClassify   = "classify"
)

// InferenceError is the structured failure of a single Predict call. It never
// affects other requests.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// LayerSummary describes one model layer without its weights.
type LayerSummary struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Units int    `json:"units,omitempty"`
}

// ModelMetadata contains information about the loaded model
type ModelMetadata struct {
	Name           string          `json:"name"`
	Version        string          `json:"version"`
	TrainedAt      time.Time       `json:"trained_at"`
	LoadedAt       time.Time       `json:"loaded_at"`
	MaxLen         int             `json:"max_len"`
	Padding        string          `json:"padding"`
	Truncating     string          `json:"truncating"`
	VocabularySize int             `json:"vocabulary_size"`
	OOVToken       string          `json:"oov_token,omitempty"`
	Layers         []LayerSummary  `json:"layers"`
	Metrics        TrainingMetrics `json:"metrics"`
	ModelPath      string          `json:"model_path"`
	VocabPath      string          `json:"vocab_path"`
}

// Pipeline runs text -> sequence -> probability -> label. It holds only
// read-only state after construction.
type Pipeline struct {
	pre     *features.Preprocessor
	clf     Classifier
	metrics MetricsInterface
}

// NewPipeline assembles a pipeline. metrics may be nil.
func NewPipeline(pre *features.Preprocessor, clf Classifier, metrics MetricsInterface) *Pipeline {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Pipeline{pre: pre, clf: clf, metrics: metrics}
}

// Predict classifies text. Every failure, including a panic inside the
// preprocessor or the classifier, comes back as *InferenceError.
func (p *Pipeline) Predict(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	defer func() {
		p.metrics.LatencyObserve(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, p.fail(StageContext, err)
	}

	var seq []int
	if err := guard(func() error {
		seq = p.pre.Sequence(text)
		return nil
	}); err != nil {
		return nil, p.fail(StagePreprocess, err)
	}

	var prob float64
	if err := guard(func() error {
		var err error
		prob, err = p.clf.Classify(seq)
		if err == nil && (math.IsNaN(prob) || prob < 0 || prob > 1) {
			err = fmt.Errorf("classifier returned %v, want a probability in [0, 1]", prob)
		}
		return err
	}); err != nil {
		return nil, p.fail(StageClassify, err)
	}

	res := Decide(text, prob)
	p.metrics.PredictionsInc(res.Sentiment)
	p.metrics.ScoresObserve(prob)

	log.Debug().
		Int("tokens", countNonPad(seq)).
		Float64("positive_probability", res.PositiveProbability).
		Str("sentiment", res.Sentiment).
		Msg("prediction successful")

	return &res, nil
}

func (p *Pipeline) fail(stage string, err error) error {
	p.metrics.FailuresInc(stage)
	log.Error().Err(err).Str("stage", stage).Msg("inference failed")
	return &InferenceError{Stage: stage, Err: err}
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func countNonPad(seq []int) int {
	n := 0
	for _, id := range seq {
		if id != features.PadIndex {
			n++
		}
	}
	return n
}

// Preprocessor returns the text stage of the pipeline.
func (p *Pipeline) Preprocessor() *features.Preprocessor { return p.pre }

// LoadArtifacts loads the vocabulary and model, checks that they agree and
// runs one warm-up prediction. Any error means the service must not start.
func LoadArtifacts(modelPath, vocabPath string, metrics MetricsInterface) (*Pipeline, *ModelMetadata, error) {
	vocab, err := features.LoadVocabulary(vocabPath)
	if err != nil {
		return nil, nil, err
	}

	model, err := LoadModel(modelPath)
	if err != nil {
		return nil, nil, err
	}

	if hi := vocab.MaxIndex(); hi >= model.VocabularyDim() {
		return nil, nil, fmt.Errorf("vocabulary index %d exceeds embedding input_dim %d", hi, model.VocabularyDim())
	}

	pre, err := features.NewPreprocessor(vocab, model.InputConfig(), model.CleanConfig())
	if err != nil {
		return nil, nil, err
	}

	// warm-up: the model must produce a probability before traffic is accepted
	if _, err := NewPipeline(pre, model, nil).Predict(context.Background(), "warm up"); err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			return nil, nil, fmt.Errorf("model warm-up failed at %s: %w", ie.Stage, ie.Err)
		}
		return nil, nil, fmt.Errorf("model warm-up failed: %w", err)
	}

	pipeline := NewPipeline(pre, model, metrics)

	art := model.Artifact()
	md := &ModelMetadata{
		Name:           art.Name,
		Version:        art.Version,
		TrainedAt:      art.TrainedAt,
		LoadedAt:       time.Now(),
		MaxLen:         art.Input.MaxLen,
		Padding:        art.Input.Padding,
		Truncating:     art.Input.Truncating,
		VocabularySize: vocab.Size(),
		OOVToken:       vocab.OOVToken(),
		Metrics:        art.Metrics,
		ModelPath:      modelPath,
		VocabPath:      vocabPath,
	}
	if md.Version == "" {
		md.Version = "unknown"
	}
	for _, l := range art.Layers {
		md.Layers = append(md.Layers, LayerSummary{Type: l.Type, Name: l.Name, Units: l.Units})
	}

	if metrics != nil {
		if age, ok := modelAge(md.TrainedAt, modelPath); ok {
			metrics.ModelAgeSet(age.Seconds())
		}
	}

	return pipeline, md, nil
}

func modelAge(trainedAt time.Time, path string) (time.Duration, bool) {
	if !trainedAt.IsZero() {
		return time.Since(trainedAt), true
	}
	info, err := os.Stat(path)
	if err != nil {
		log.Warn().Err(err).Str("model_path", path).Msg("Failed to get model file info")
		return 0, false
	}
	return time.Since(info.ModTime()), true
}
