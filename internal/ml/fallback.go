package ml

import (
	"fmt"
	"math"

	"review-sentiment/internal/features"
)

// DefaultPositiveWords and DefaultNegativeWords seed the lexicon baseline.
var (
	DefaultPositiveWords = []string{
		"amazing", "awesome", "best", "enjoy", "excellent", "fun", "good", "great",
		"love", "nice", "perfect", "recommend", "cool", "fantastic", "happy",
	}
	DefaultNegativeWords = []string{
		"bad", "boring", "broken", "bug", "hate", "lag", "laggy", "scam", "terrible",
		"trash", "unfair", "worst", "awful", "crash", "annoying",
	}
)

// LexiconClassifier is a heuristic baseline: each known sentiment word adds or
// subtracts a fixed weight and the sum is squashed through a sigmoid. It is
// the reference score a trained model is compared against in offline
// evaluation; it never serves traffic.
type LexiconClassifier struct {
	weights map[int]float64
	scale   float64
}

// NewLexiconClassifier builds a baseline over the words the vocabulary knows.
// Words missing from the vocabulary are skipped.
func NewLexiconClassifier(vocab *features.Vocabulary, positive, negative []string) *LexiconClassifier {
	c := &LexiconClassifier{
		weights: make(map[int]float64),
		scale:   1.5,
	}
	add := func(words []string, w float64) {
		for _, word := range words {
			idx, ok := vocab.Index(word)
			if !ok || idx == vocab.OOVIndex() {
				continue
			}
			c.weights[idx] += w
		}
	}
	add(positive, 1)
	add(negative, -1)
	return c
}

// Classify implements Classifier.
func (c *LexiconClassifier) Classify(seq []int) (float64, error) {
	score := 0.0
	for _, id := range seq {
		score += c.weights[id]
	}
	return sigmoid(c.scale * math.Tanh(score)), nil
}

// Words is the number of lexicon entries found in the vocabulary.
func (c *LexiconClassifier) Words() int { return len(c.weights) }

// baselineMaxLen bounds baseline sequences when no model supplies a shape.
const baselineMaxLen = 100

// LoadBaseline builds a lexicon pipeline over the tokenizer at vocabPath.
// With a modelPath the baseline reuses that model's cleaning and sequence
// shape, so both score exactly the same token ids.
func LoadBaseline(vocabPath, modelPath string) (*Pipeline, error) {
	vocab, err := features.LoadVocabulary(vocabPath)
	if err != nil {
		return nil, err
	}

	seq := features.SequenceConfig{MaxLen: baselineMaxLen}
	var clean features.CleanConfig
	if modelPath != "" {
		model, err := LoadModel(modelPath)
		if err != nil {
			return nil, err
		}
		seq, clean = model.InputConfig(), model.CleanConfig()
	}

	pre, err := features.NewPreprocessor(vocab, seq, clean)
	if err != nil {
		return nil, err
	}
	clf := NewLexiconClassifier(vocab, DefaultPositiveWords, DefaultNegativeWords)
	if clf.Words() == 0 {
		return nil, fmt.Errorf("tokenizer %s contains none of the lexicon words", vocabPath)
	}
	return NewPipeline(pre, clf, nil), nil
}
