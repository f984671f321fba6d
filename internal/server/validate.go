package server

import (
	"strings"
	"unicode/utf8"

	"review-sentiment/internal/common"
)

// ValidationError is a client-side input problem. Its message is meant to be
// shown to the user as-is.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return e.Detail }

// ValidateText rejects text that is empty or shorter than MinTextLength
// characters once surrounding whitespace is removed, and text longer than
// maxLen characters. maxLen <= 0 disables the upper bound.
func ValidateText(text string, maxLen int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < common.MinTextLength {
		return &ValidationError{Detail: common.ErrMsgTextTooShort}
	}
	if maxLen > 0 && n > maxLen {
		return &ValidationError{Detail: common.ErrMsgTextTooLong}
	}
	return nil
}
