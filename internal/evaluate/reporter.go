package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Reporter writes an evaluation report in several formats.
type Reporter struct {
	report *Report
}

func NewReporter(report *Report) *Reporter {
	return &Reporter{report: report}
}

// Write creates dir if needed and writes evaluation_summary.txt,
// evaluation.json and predictions.csv into it.
func (r *Reporter) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := r.writeSummary(filepath.Join(dir, "evaluation_summary.txt")); err != nil {
		return err
	}
	if err := r.writeJSON(filepath.Join(dir, "evaluation.json")); err != nil {
		return err
	}
	return r.writePredictions(filepath.Join(dir, "predictions.csv"))
}

func (r *Reporter) writeSummary(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.PrintSummary(file)
	log.Info().Str("file", path).Msg("Summary report generated")
	return nil
}

// PrintSummary writes a human-readable summary to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	rep := r.report
	c := rep.Confusion

	fmt.Fprintf(w, "EVALUATION SUMMARY\n")
	fmt.Fprintf(w, "==================\n\n")
	fmt.Fprintf(w, "Samples: %d (evaluated %d, failed %d)\n", rep.Total, rep.Evaluated, rep.Failures)
	fmt.Fprintf(w, "Duration: %s\n\n", rep.EndTime.Sub(rep.StartTime))

	fmt.Fprintf(w, "SCORES (positive class)\n")
	fmt.Fprintf(w, "-----------------------\n")
	fmt.Fprintf(w, "Accuracy:  %.4f\n", rep.Accuracy)
	fmt.Fprintf(w, "Precision: %.4f\n", rep.Precision)
	fmt.Fprintf(w, "Recall:    %.4f\n", rep.Recall)
	fmt.Fprintf(w, "F1:        %.4f\n\n", rep.F1)

	fmt.Fprintf(w, "CONFUSION MATRIX\n")
	fmt.Fprintf(w, "----------------\n")
	fmt.Fprintf(w, "%-16s %10s %10s\n", "", "pred pos", "pred neg")
	fmt.Fprintf(w, "%-16s %10d %10d\n", "actual positive", c.TruePositive, c.FalseNegative)
	fmt.Fprintf(w, "%-16s %10d %10d\n", "actual negative", c.FalsePositive, c.TrueNegative)
}

func (r *Reporter) writeJSON(path string) error {
	out := struct {
		*Report
		Predictions []Prediction `json:"predictions"`
	}{r.report, r.report.Results}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

func (r *Reporter) writePredictions(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create predictions file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"index", "text", "label", "predicted", "positive_probability", "confidence", "correct", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, p := range r.report.Results {
		record := []string{
			strconv.Itoa(p.Index),
			p.Text,
			p.Label,
			p.Predicted,
			strconv.FormatFloat(p.PositiveProbability, 'f', 4, 64),
			strconv.FormatFloat(p.Confidence, 'f', 4, 64),
			strconv.FormatBool(p.Correct),
			p.Error,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}

	log.Info().Str("file", path).Int("rows", len(r.report.Results)).Msg("Predictions written")
	return nil
}
