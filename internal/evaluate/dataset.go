package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"review-sentiment/internal/ml"

	"github.com/rs/zerolog/log"
)

// ErrEmptyDataset is returned when a file holds no usable samples.
var ErrEmptyDataset = errors.New("dataset has no labelled samples")

// Sample is one labelled review.
type Sample struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// LoadDataset reads labelled reviews from a .csv or .json file. CSV files
// need a header with a text column (text, review or content) and a label
// column (label or sentiment). JSON files hold an array of samples. Rows
// with an unknown label are skipped.
func LoadDataset(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	var samples []Sample
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		samples, err = readJSON(file)
	default:
		samples, err = readCSV(file)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDataset)
	}

	log.Info().Str("file", path).Int("samples", len(samples)).Msg("Dataset loaded")
	return samples, nil
}

func readCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	textIdx, labelIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))) {
		case "text", "review", "content":
			if textIdx < 0 {
				textIdx = i
			}
		case "label", "sentiment":
			if labelIdx < 0 {
				labelIdx = i
			}
		}
	}
	if textIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("CSV header %v needs a text and a label column", header)
	}

	var samples []Sample
	skipped := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if textIdx >= len(record) || labelIdx >= len(record) {
			skipped++
			continue
		}
		label, ok := NormalizeLabel(record[labelIdx])
		if !ok {
			skipped++
			continue
		}
		samples = append(samples, Sample{Text: record[textIdx], Label: label})
	}

	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("Skipped dataset rows with missing fields or unknown labels")
	}
	return samples, nil
}

func readJSON(r io.Reader) ([]Sample, error) {
	var raw []Sample
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON dataset: %w", err)
	}
	samples := raw[:0]
	for _, s := range raw {
		label, ok := NormalizeLabel(s.Label)
		if !ok {
			continue
		}
		s.Label = label
		samples = append(samples, s)
	}
	return samples, nil
}

// NormalizeLabel maps the label spellings found in review datasets onto
// ml.LabelPositive and ml.LabelNegative.
func NormalizeLabel(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "pos", "1":
		return ml.LabelPositive, true
	case "negative", "neg", "0":
		return ml.LabelNegative, true
	}
	return "", false
}
