package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"review-sentiment/internal/features"

	"github.com/rs/zerolog/log"
)

// Supported layer types in the model artifact.
const (
	LayerEmbedding     = "embedding"
	LayerLSTM          = "lstm"
	LayerDense         = "dense"
	LayerDropout       = "dropout"
	LayerGlobalMaxPool = "global_max_pooling1d"
	LayerGlobalAvgPool = "global_average_pooling1d"
)

// LayerSpec is one layer of the exported Keras model.
type LayerSpec struct {
	Type                string      `json:"type"`
	Name                string      `json:"name,omitempty"`
	InputDim            int         `json:"input_dim,omitempty"`
	OutputDim           int         `json:"output_dim,omitempty"`
	MaskZero            bool        `json:"mask_zero,omitempty"`
	Units               int         `json:"units,omitempty"`
	Activation          string      `json:"activation,omitempty"`
	RecurrentActivation string      `json:"recurrent_activation,omitempty"`
	ReturnSequences     bool        `json:"return_sequences,omitempty"`
	Weights             [][]float64 `json:"weights,omitempty"`
	Kernel              [][]float64 `json:"kernel,omitempty"`
	RecurrentKernel     [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias                []float64   `json:"bias,omitempty"`
}

// TrainingMetrics are the scores recorded when the model was trained.
type TrainingMetrics struct {
	Accuracy      float64 `json:"accuracy"`
	ValidationAcc float64 `json:"validation_accuracy"`
	TrainingRows  int     `json:"training_rows"`
}

// ModelArtifact is the on-disk model document.
type ModelArtifact struct {
	Name      string                  `json:"name"`
	Version   string                  `json:"version"`
	TrainedAt time.Time               `json:"trained_at"`
	Input     features.SequenceConfig `json:"input"`
	Clean     features.CleanConfig    `json:"clean"`
	Layers    []LayerSpec             `json:"layers"`
	Metrics   TrainingMetrics         `json:"metrics"`
}

// Model is a loaded, immutable classifier. Forward may be called concurrently.
type Model struct {
	artifact ModelArtifact
	layers   []layer
	vocabDim int // embedding input_dim
}

// LoadModel reads and builds a model artifact.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to build model %s: %w", path, err)
	}

	log.Info().
		Str("model_path", path).
		Str("version", m.artifact.Version).
		Int("layers", len(m.layers)).
		Int("max_len", m.artifact.Input.MaxLen).
		Msg("model loaded")

	return m, nil
}

// ParseModel decodes and validates a model artifact.
func ParseModel(data []byte) (*Model, error) {
	var art ModelArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return NewModel(art)
}

// NewModel validates layer shapes and builds the runtime layers.
func NewModel(art ModelArtifact) (*Model, error) {
	if err := art.Input.Validate(); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if len(art.Layers) == 0 {
		return nil, errors.New("model has no layers")
	}
	if art.Layers[0].Type != LayerEmbedding {
		return nil, fmt.Errorf("first layer must be %s, got %q", LayerEmbedding, art.Layers[0].Type)
	}

	m := &Model{artifact: art}

	// shape tracking: seq is true while the value is a sequence of width dim
	seq, dim := false, 0
	for i, spec := range art.Layers {
		l, outSeq, outDim, err := buildLayer(spec, seq, dim)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, spec.Type, err)
		}
		if i == 0 {
			m.vocabDim = spec.InputDim
		}
		m.layers = append(m.layers, l)
		seq, dim = outSeq, outDim
	}

	if seq || dim != 1 {
		return nil, fmt.Errorf("model must end in a single output unit, got seq=%v dim=%d", seq, dim)
	}
	return m, nil
}

func buildLayer(spec LayerSpec, inSeq bool, inDim int) (layer, bool, int, error) {
	switch spec.Type {
	case LayerEmbedding:
		if inSeq || inDim != 0 {
			return nil, false, 0, errors.New("embedding must be the first layer")
		}
		if spec.InputDim <= 0 || spec.OutputDim <= 0 {
			return nil, false, 0, fmt.Errorf("input_dim and output_dim must be positive")
		}
		if err := checkMatrix("weights", spec.Weights, spec.InputDim, spec.OutputDim); err != nil {
			return nil, false, 0, err
		}
		return &embeddingLayer{weights: spec.Weights, maskZero: spec.MaskZero}, true, spec.OutputDim, nil

	case LayerLSTM:
		if !inSeq {
			return nil, false, 0, errors.New("lstm needs a sequence input")
		}
		if spec.Units <= 0 {
			return nil, false, 0, errors.New("units must be positive")
		}
		if err := checkMatrix("kernel", spec.Kernel, inDim, 4*spec.Units); err != nil {
			return nil, false, 0, err
		}
		if err := checkMatrix("recurrent_kernel", spec.RecurrentKernel, spec.Units, 4*spec.Units); err != nil {
			return nil, false, 0, err
		}
		if err := checkVector("bias", spec.Bias, 4*spec.Units); err != nil {
			return nil, false, 0, err
		}
		act, err := activationByName(defaultString(spec.Activation, "tanh"))
		if err != nil {
			return nil, false, 0, err
		}
		recAct, err := activationByName(defaultString(spec.RecurrentActivation, "sigmoid"))
		if err != nil {
			return nil, false, 0, err
		}
		return &lstmLayer{
			units:           spec.Units,
			kernel:          spec.Kernel,
			recurrentKernel: spec.RecurrentKernel,
			bias:            spec.Bias,
			activation:      act,
			recurrentAct:    recAct,
			returnSequences: spec.ReturnSequences,
		}, spec.ReturnSequences, spec.Units, nil

	case LayerDense:
		if inSeq {
			return nil, false, 0, errors.New("dense needs a vector input; add a pooling layer or an lstm without return_sequences")
		}
		if spec.Units <= 0 {
			return nil, false, 0, errors.New("units must be positive")
		}
		if err := checkMatrix("kernel", spec.Kernel, inDim, spec.Units); err != nil {
			return nil, false, 0, err
		}
		if err := checkVector("bias", spec.Bias, spec.Units); err != nil {
			return nil, false, 0, err
		}
		act, err := activationByName(spec.Activation)
		if err != nil {
			return nil, false, 0, err
		}
		return &denseLayer{kernel: spec.Kernel, bias: spec.Bias, activation: act}, false, spec.Units, nil

	case LayerDropout:
		return dropoutLayer{}, inSeq, inDim, nil

	case LayerGlobalMaxPool, LayerGlobalAvgPool:
		if !inSeq {
			return nil, false, 0, errors.New("pooling needs a sequence input")
		}
		return &poolingLayer{max: spec.Type == LayerGlobalMaxPool}, false, inDim, nil

	default:
		return nil, false, 0, fmt.Errorf("unsupported layer type %q", spec.Type)
	}
}

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("%s has %d rows, want %d", name, len(m), rows)
	}
	for i, row := range m {
		if err := checkVector(fmt.Sprintf("%s row %d", name, i), row, cols); err != nil {
			return err
		}
	}
	return nil
}

func checkVector(name string, v []float64, n int) error {
	if len(v) != n {
		return fmt.Errorf("%s has %d values, want %d", name, len(v), n)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%s[%d] is not finite", name, i)
		}
	}
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Forward runs one sequence through the network and returns the positive-class
// probability.
func (m *Model) Forward(seq []int) (float64, error) {
	if len(seq) != m.artifact.Input.MaxLen {
		return 0, fmt.Errorf("expected sequence of length %d, got %d", m.artifact.Input.MaxLen, len(seq))
	}

	ids := make([]float64, len(seq))
	for i, id := range seq {
		ids[i] = float64(id)
	}

	t := tensor{vec: ids}
	for i, l := range m.layers {
		var err error
		if t, err = l.forward(t); err != nil {
			return 0, fmt.Errorf("layer %d (%s): %w", i, l.kind(), err)
		}
	}

	p := t.vec[0]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("model output %v is not a probability", p)
	}
	return p, nil
}

// Classify implements Classifier.
func (m *Model) Classify(seq []int) (float64, error) {
	return m.Forward(seq)
}

// Artifact returns the model document without weights.
func (m *Model) Artifact() ModelArtifact {
	art := m.artifact
	art.Layers = make([]LayerSpec, len(m.artifact.Layers))
	for i, l := range m.artifact.Layers {
		art.Layers[i] = LayerSpec{
			Type:                l.Type,
			Name:                l.Name,
			InputDim:            l.InputDim,
			OutputDim:           l.OutputDim,
			MaskZero:            l.MaskZero,
			Units:               l.Units,
			Activation:          l.Activation,
			RecurrentActivation: l.RecurrentActivation,
			ReturnSequences:     l.ReturnSequences,
		}
	}
	return art
}

// InputConfig is the sequence contract the model was trained with.
func (m *Model) InputConfig() features.SequenceConfig { return m.artifact.Input }

// CleanConfig is the training-time text cleaning rules.
func (m *Model) CleanConfig() features.CleanConfig { return m.artifact.Clean }

// VocabularyDim is the embedding table size.
func (m *Model) VocabularyDim() int { return m.vocabDim }
