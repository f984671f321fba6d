// Package features turns raw review text into the fixed-length integer sequences
// the sentiment model consumes.
//
// The vocabulary is the Keras Tokenizer fitted at training time. Normalization
// follows that tokenizer's own configuration (lower-casing, filter characters,
// split string) so serving and training agree on every token boundary.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultFilters is the Keras Tokenizer default filter set.
const DefaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

// PadIndex is the sequence value used for padding. Keras never assigns it to a word.
const PadIndex = 0

// ErrEmptyVocabulary is returned when a tokenizer artifact has no word index.
var ErrEmptyVocabulary = errors.New("vocabulary has no entries")

// Vocabulary is an immutable word -> index mapping plus the normalization rules
// it was fitted with. It is safe for concurrent use.
type Vocabulary struct {
	wordIndex map[string]int
	numWords  int // 0 means unlimited
	filters   string
	lower     bool
	split     string
	charLevel bool
	oovToken  string
	oovIndex  int // 0 when the tokenizer has no OOV token
	maxIndex  int
}

// tokenizerJSON mirrors the document written by keras Tokenizer.to_json().
type tokenizerJSON struct {
	ClassName string `json:"class_name"`
	Config    struct {
		NumWords  *int            `json:"num_words"`
		Filters   *string         `json:"filters"`
		Lower     *bool           `json:"lower"`
		Split     *string         `json:"split"`
		CharLevel bool            `json:"char_level"`
		OOVToken  *string         `json:"oov_token"`
		WordIndex json.RawMessage `json:"word_index"`
	} `json:"config"`
}

// LoadVocabulary reads a tokenizer artifact from disk.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}

	v, err := ParseVocabulary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary %s: %w", path, err)
	}

	log.Info().
		Str("vocab_path", path).
		Int("words", v.Size()).
		Str("oov_token", v.oovToken).
		Msg("vocabulary loaded")

	return v, nil
}

// ParseVocabulary decodes a tokenizer artifact.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var doc tokenizerJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tokenizer: %w", err)
	}
	if doc.ClassName != "" && doc.ClassName != "Tokenizer" {
		return nil, fmt.Errorf("unexpected tokenizer class %q", doc.ClassName)
	}

	wordIndex, err := decodeWordIndex(doc.Config.WordIndex)
	if err != nil {
		return nil, err
	}
	if len(wordIndex) == 0 {
		return nil, ErrEmptyVocabulary
	}

	v := &Vocabulary{
		wordIndex: wordIndex,
		filters:   DefaultFilters,
		lower:     true,
		split:     " ",
		charLevel: doc.Config.CharLevel,
	}
	if doc.Config.NumWords != nil {
		if *doc.Config.NumWords < 0 {
			return nil, fmt.Errorf("num_words must not be negative, got %d", *doc.Config.NumWords)
		}
		v.numWords = *doc.Config.NumWords
	}
	if doc.Config.Filters != nil {
		v.filters = *doc.Config.Filters
	}
	if doc.Config.Lower != nil {
		v.lower = *doc.Config.Lower
	}
	if doc.Config.Split != nil {
		if *doc.Config.Split == "" && !v.charLevel {
			return nil, errors.New("split string must not be empty")
		}
		v.split = *doc.Config.Split
	}
	if doc.Config.OOVToken != nil {
		v.oovToken = *doc.Config.OOVToken
		idx, ok := wordIndex[v.oovToken]
		if !ok {
			return nil, fmt.Errorf("oov token %q missing from word index", v.oovToken)
		}
		v.oovIndex = idx
	}

	for word, idx := range wordIndex {
		if idx <= PadIndex {
			return nil, fmt.Errorf("word %q has reserved index %d", word, idx)
		}
		if idx > v.maxIndex {
			v.maxIndex = idx
		}
	}

	return v, nil
}

// Keras stores word_index as a JSON string inside the config; hand-written
// artifacts usually carry a plain object.
func decodeWordIndex(raw json.RawMessage) (map[string]int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrEmptyVocabulary
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var index map[string]int
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("decode word_index: %w", err)
	}
	return index, nil
}

// Tokenize normalizes text and splits it into tokens the same way
// keras.preprocessing.text.text_to_word_sequence does.
func (v *Vocabulary) Tokenize(text string) []string {
	if v.lower {
		text = strings.ToLower(text)
	}

	// char-level tokenizers see every character, filters included
	if v.charLevel {
		tokens := make([]string, 0, len(text))
		for _, r := range text {
			tokens = append(tokens, string(r))
		}
		return tokens
	}

	if v.filters != "" {
		text = replaceFilters(text, v.filters, v.split)
	}

	parts := strings.Split(text, v.split)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

func replaceFilters(text, filters, split string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(filters, r) {
			b.WriteString(split)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Index returns the sequence value for a token. The boolean is false when the
// token is unknown and the tokenizer drops unknown tokens.
func (v *Vocabulary) Index(token string) (int, bool) {
	idx, ok := v.wordIndex[token]
	if ok && (v.numWords == 0 || idx < v.numWords) {
		return idx, true
	}
	if v.oovIndex != 0 {
		return v.oovIndex, true
	}
	return 0, false
}

// Encode maps tokens to indices, substituting or dropping unknown tokens.
func (v *Vocabulary) Encode(tokens []string) []int {
	ids := make([]int, 0, len(tokens))
	for _, t := range tokens {
		if idx, ok := v.Index(t); ok {
			ids = append(ids, idx)
		}
	}
	return ids
}

// Size is the number of words in the index.
func (v *Vocabulary) Size() int { return len(v.wordIndex) }

// MaxIndex is the largest index any token can produce.
func (v *Vocabulary) MaxIndex() int {
	if v.numWords > 0 && v.numWords-1 < v.maxIndex {
		hi := v.numWords - 1
		if v.oovIndex > hi {
			hi = v.oovIndex
		}
		return hi
	}
	return v.maxIndex
}

// OOVIndex is the index used for unknown tokens, or 0 when they are dropped.
func (v *Vocabulary) OOVIndex() int { return v.oovIndex }

// OOVToken returns the configured out-of-vocabulary token.
func (v *Vocabulary) OOVToken() string { return v.oovToken }
