package features

import (
	"regexp"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	mentionPattern = regexp.MustCompile(`[@#]\w+`)
	digitPattern   = regexp.MustCompile(`\d+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// CleanConfig holds the training-time cleaning rules applied before tokenization.
type CleanConfig struct {
	StripURLs     bool `json:"strip_urls" yaml:"stripURLs"`
	StripMentions bool `json:"strip_mentions" yaml:"stripMentions"`
	StripDigits   bool `json:"strip_digits" yaml:"stripDigits"`
}

// Cleaner applies a CleanConfig. The zero value only collapses whitespace.
type Cleaner struct {
	cfg CleanConfig
}

// NewCleaner returns a cleaner for the given rules.
func NewCleaner(cfg CleanConfig) *Cleaner {
	return &Cleaner{cfg: cfg}
}

// Clean removes the configured noise and collapses runs of whitespace.
func (c *Cleaner) Clean(text string) string {
	if c.cfg.StripURLs {
		text = urlPattern.ReplaceAllString(text, " ")
	}
	if c.cfg.StripMentions {
		text = mentionPattern.ReplaceAllString(text, " ")
	}
	if c.cfg.StripDigits {
		text = digitPattern.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}
