// Package evaluate measures a sentiment predictor against a labelled
// dataset and writes the results to disk.
package evaluate

import (
	"context"
	"time"

	"review-sentiment/internal/ml"

	"github.com/rs/zerolog/log"
)

// Predictor is satisfied by *ml.Pipeline and by *client.Client, so a model
// can be evaluated in process or behind a running server.
type Predictor interface {
	Predict(ctx context.Context, text string) (*ml.Result, error)
}

// Confusion counts outcomes with positive as the target class.
type Confusion struct {
	TruePositive  int `json:"true_positive"`
	FalsePositive int `json:"false_positive"`
	TrueNegative  int `json:"true_negative"`
	FalseNegative int `json:"false_negative"`
}

// Prediction is the outcome for one sample.
type Prediction struct {
	Index               int     `json:"index"`
	Text                string  `json:"text"`
	Label               string  `json:"label"`
	Predicted           string  `json:"predicted,omitempty"`
	PositiveProbability float64 `json:"positive_probability"`
	Confidence          float64 `json:"confidence"`
	Correct             bool    `json:"correct"`
	Error               string  `json:"error,omitempty"`
}

// Report holds the evaluation results.
type Report struct {
	Total     int          `json:"total"`
	Evaluated int          `json:"evaluated"`
	Failures  int          `json:"failures"`
	Confusion Confusion    `json:"confusion"`
	Accuracy  float64      `json:"accuracy"`
	Precision float64      `json:"precision"`
	Recall    float64      `json:"recall"`
	F1        float64      `json:"f1"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Results   []Prediction `json:"-"`
}

// Run predicts every sample in order. Samples whose prediction fails are
// counted as failures and left out of the scores.
func Run(ctx context.Context, p Predictor, samples []Sample) *Report {
	report := &Report{
		Total:     len(samples),
		StartTime: time.Now(),
		Results:   make([]Prediction, 0, len(samples)),
	}

	log.Info().Int("samples", len(samples)).Msg("Starting evaluation")

	for i, s := range samples {
		rec := Prediction{Index: i, Text: s.Text, Label: s.Label}

		res, err := p.Predict(ctx, s.Text)
		if err != nil {
			rec.Error = err.Error()
			report.Failures++
			report.Results = append(report.Results, rec)
			log.Debug().Err(err).Int("index", i).Msg("Prediction failed")
			continue
		}

		rec.Predicted = res.Sentiment
		rec.PositiveProbability = res.PositiveProbability
		rec.Confidence = res.Confidence
		rec.Correct = res.Sentiment == s.Label
		report.Results = append(report.Results, rec)
		report.Evaluated++
		report.Confusion.add(s.Label, res.Sentiment)
	}

	report.EndTime = time.Now()
	report.calculateMetrics()

	log.Info().
		Int("evaluated", report.Evaluated).
		Int("failures", report.Failures).
		Float64("accuracy", report.Accuracy).
		Float64("f1", report.F1).
		Msg("Evaluation finished")

	return report
}

func (c *Confusion) add(label, predicted string) {
	switch {
	case label == ml.LabelPositive && predicted == ml.LabelPositive:
		c.TruePositive++
	case label == ml.LabelNegative && predicted == ml.LabelPositive:
		c.FalsePositive++
	case label == ml.LabelNegative:
		c.TrueNegative++
	default:
		c.FalseNegative++
	}
}

func (r *Report) calculateMetrics() {
	c := r.Confusion
	r.Accuracy = ratio(c.TruePositive+c.TrueNegative, r.Evaluated)
	r.Precision = ratio(c.TruePositive, c.TruePositive+c.FalsePositive)
	r.Recall = ratio(c.TruePositive, c.TruePositive+c.FalseNegative)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
