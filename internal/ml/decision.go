package ml

import "math"

// Sentiment labels.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
)

// DecisionThreshold is the probability at or above which text is positive.
const DecisionThreshold = 0.5

// Result is the answer for one piece of text.
type Result struct {
	Text                string  `json:"text"`
	Sentiment           string  `json:"sentiment"`
	Confidence          float64 `json:"confidence"`
	PositiveProbability float64 `json:"positive_probability"`
}

// Decide turns a positive-class probability into a label. Confidence is the
// probability mass of the chosen label, so it is never below 0.5.
func Decide(text string, p float64) Result {
	label := LabelNegative
	confidence := 1 - p
	if p >= DecisionThreshold {
		label = LabelPositive
		confidence = p
	}
	return Result{
		Text:                text,
		Sentiment:           label,
		Confidence:          Round4(confidence),
		PositiveProbability: Round4(p),
	}
}

// Round4 rounds half away from zero to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
