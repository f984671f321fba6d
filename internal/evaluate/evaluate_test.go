package evaluate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"review-sentiment/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPredictor map[string]float64

func (s stubPredictor) Predict(_ context.Context, text string) (*ml.Result, error) {
	p, ok := s[text]
	if !ok {
		return nil, &ml.InferenceError{Stage: ml.StageClassify, Err: errors.New("no score")}
	}
	res := ml.Decide(text, p)
	return &res, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDataset_CSV(t *testing.T) {
	samples, err := LoadDataset("testdata/reviews.csv")
	require.NoError(t, err)

	// the neutral row is skipped
	require.Len(t, samples, 5)
	assert.Equal(t, Sample{Text: "This game is absolutely amazing and fun to play", Label: ml.LabelPositive}, samples[0])
	assert.Equal(t, ml.LabelNegative, samples[1].Label)
	assert.Equal(t, ml.LabelPositive, samples[2].Label)
	assert.Equal(t, ml.LabelNegative, samples[3].Label)
	assert.Equal(t, "I love this game", samples[4].Text)
}

func TestLoadDataset_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"missing label column", "a.csv", "text,score\ngood game,5\n", "needs a text and a label column"},
		{"no usable rows", "b.csv", "text,label\ngood game,maybe\n", ErrEmptyDataset.Error()},
		{"header only", "c.csv", "text,label\n", ErrEmptyDataset.Error()},
		{"empty file", "d.csv", "", "failed to read CSV header"},
		{"bad json", "e.json", "{", "failed to decode JSON dataset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDataset(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadDataset(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDataset_JSON(t *testing.T) {
	path := writeFile(t, "reviews.json", `[
		{"text": "great game", "label": "Positive"},
		{"text": "so laggy", "label": "NEG"},
		{"text": "ok", "label": "3"}
	]`)

	samples, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Text: "great game", Label: ml.LabelPositive},
		{Text: "so laggy", Label: ml.LabelNegative},
	}, samples)
}

func TestNormalizeLabel(t *testing.T) {
	for raw, want := range map[string]string{
		"positive": ml.LabelPositive, " POS ": ml.LabelPositive, "1": ml.LabelPositive,
		"negative": ml.LabelNegative, "Neg": ml.LabelNegative, "0": ml.LabelNegative,
	} {
		got, ok := NormalizeLabel(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := NormalizeLabel("neutral")
	assert.False(t, ok)
}

func TestRun(t *testing.T) {
	p := stubPredictor{
		"love it": 0.9,
		"hate it": 0.1,
		"meh pos": 0.3,
		"meh neg": 0.7,
		"great":   0.5,
	}
	samples := []Sample{
		{"love it", ml.LabelPositive},
		{"hate it", ml.LabelNegative},
		{"meh pos", ml.LabelPositive},
		{"meh neg", ml.LabelNegative},
		{"great", ml.LabelPositive},
		{"boom", ml.LabelPositive},
	}

	report := Run(context.Background(), p, samples)

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, Confusion{TruePositive: 2, FalsePositive: 1, TrueNegative: 1, FalseNegative: 1}, report.Confusion)
	assert.InDelta(t, 0.6, report.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, report.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, report.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, report.F1, 1e-12)

	require.Len(t, report.Results, 6)
	assert.True(t, report.Results[0].Correct)
	assert.False(t, report.Results[2].Correct)
	assert.Equal(t, ml.LabelNegative, report.Results[2].Predicted)
	assert.Contains(t, report.Results[5].Error, "classify failed")
	assert.Empty(t, report.Results[5].Predicted)
}

func TestRun_NoSamples(t *testing.T) {
	report := Run(context.Background(), stubPredictor{}, nil)
	assert.Zero(t, report.Evaluated)
	assert.Zero(t, report.Accuracy)
	assert.Zero(t, report.F1)
}

func TestRun_WithModel(t *testing.T) {
	pipeline, _, err := ml.LoadArtifacts("../ml/testdata/model.json", "../ml/testdata/tokenizer.json", nil)
	require.NoError(t, err)

	samples, err := LoadDataset("testdata/reviews.csv")
	require.NoError(t, err)

	report := Run(context.Background(), pipeline, samples[:2])
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1.0, report.Accuracy)
	assert.InDelta(t, 0.9788, report.Results[0].PositiveProbability, 1e-12)
	assert.InDelta(t, 0.0212, report.Results[1].PositiveProbability, 1e-12)
}

func TestRun_CancelledContext(t *testing.T) {
	pipeline, _, err := ml.LoadArtifacts("../ml/testdata/model.json", "../ml/testdata/tokenizer.json", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := Run(ctx, pipeline, []Sample{{"amazing fun game", ml.LabelPositive}})
	assert.Equal(t, 1, report.Failures)
	assert.Contains(t, report.Results[0].Error, "context")
}

func TestReporter_Write(t *testing.T) {
	report := Run(context.Background(), stubPredictor{"love it": 0.9, "hate it": 0.8}, []Sample{
		{"love it", ml.LabelPositive},
		{"hate it", ml.LabelNegative},
		{"boom", ml.LabelNegative},
	})

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, NewReporter(report).Write(dir))

	summary, err := os.ReadFile(filepath.Join(dir, "evaluation_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Samples: 3 (evaluated 2, failed 1)")
	assert.Contains(t, string(summary), "Accuracy:  0.5000")

	raw, err := os.ReadFile(filepath.Join(dir, "evaluation.json"))
	require.NoError(t, err)
	var decoded struct {
		Total       int          `json:"total"`
		Confusion   Confusion    `json:"confusion"`
		Predictions []Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 3, decoded.Total)
	assert.Equal(t, Confusion{TruePositive: 1, FalsePositive: 1}, decoded.Confusion)
	assert.Len(t, decoded.Predictions, 3)

	f, err := os.Open(filepath.Join(dir, "predictions.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "index", rows[0][0])
	assert.Equal(t, []string{"1", "hate it", "negative", "positive", "0.8000", "0.8000", "false", ""}, rows[2])
	assert.True(t, strings.HasPrefix(rows[3][7], "classify failed"))
}
