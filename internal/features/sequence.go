package features

import (
	"errors"
	"fmt"
)

// Padding and truncation sides, named as in keras pad_sequences.
const (
	SidePre  = "pre"
	SidePost = "post"
)

// SequenceConfig fixes the shape of the model input.
type SequenceConfig struct {
	MaxLen     int    `json:"max_len"`
	Padding    string `json:"padding"`
	Truncating string `json:"truncating"`
}

// Validate fills keras defaults and rejects unknown sides.
func (c *SequenceConfig) Validate() error {
	if c.MaxLen <= 0 {
		return fmt.Errorf("max_len must be positive, got %d", c.MaxLen)
	}
	if c.Padding == "" {
		c.Padding = SidePre
	}
	if c.Truncating == "" {
		c.Truncating = SidePre
	}
	if c.Padding != SidePre && c.Padding != SidePost {
		return fmt.Errorf("padding must be %q or %q, got %q", SidePre, SidePost, c.Padding)
	}
	if c.Truncating != SidePre && c.Truncating != SidePost {
		return fmt.Errorf("truncating must be %q or %q, got %q", SidePre, SidePost, c.Truncating)
	}
	return nil
}

// PadSequence returns a new slice of exactly maxLen values. Sequences that are
// too long lose values from the truncating side; short ones get PadIndex on
// the padding side.
func PadSequence(ids []int, maxLen int, padding, truncating string) []int {
	out := make([]int, maxLen)
	if maxLen <= 0 {
		return out
	}

	if len(ids) > maxLen {
		if truncating == SidePost {
			ids = ids[:maxLen]
		} else {
			ids = ids[len(ids)-maxLen:]
		}
	}

	if padding == SidePost {
		copy(out, ids)
	} else {
		copy(out[maxLen-len(ids):], ids)
	}
	return out
}

// Preprocessor is the pure text -> sequence stage. It holds only read-only
// state and is safe for concurrent use.
type Preprocessor struct {
	vocab   *Vocabulary
	cleaner *Cleaner
	seq     SequenceConfig
}

// NewPreprocessor wires a vocabulary to the model's input contract.
func NewPreprocessor(vocab *Vocabulary, seq SequenceConfig, clean CleanConfig) (*Preprocessor, error) {
	if vocab == nil {
		return nil, errors.New("vocabulary is nil")
	}
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sequence config: %w", err)
	}
	return &Preprocessor{
		vocab:   vocab,
		cleaner: NewCleaner(clean),
		seq:     seq,
	}, nil
}

// Tokens returns the normalized tokens for text, before index mapping.
func (p *Preprocessor) Tokens(text string) []string {
	return p.vocab.Tokenize(p.cleaner.Clean(text))
}

// Sequence converts text into a sequence of length MaxLen.
func (p *Preprocessor) Sequence(text string) []int {
	ids := p.vocab.Encode(p.Tokens(text))
	return PadSequence(ids, p.seq.MaxLen, p.seq.Padding, p.seq.Truncating)
}

// MaxLen is the fixed sequence length L.
func (p *Preprocessor) MaxLen() int { return p.seq.MaxLen }

// Config returns the sequence contract.
func (p *Preprocessor) Config() SequenceConfig { return p.seq }

// Vocabulary returns the underlying vocabulary.
func (p *Preprocessor) Vocabulary() *Vocabulary { return p.vocab }
