package server

import (
	"errors"
	"strings"
	"testing"

	"review-sentiment/internal/common"

	"github.com/stretchr/testify/assert"
)

func TestValidateText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{"empty", "", 100, common.ErrMsgTextTooShort},
		{"spaces", "     ", 100, common.ErrMsgTextTooShort},
		{"tabs and newlines", "\t\n ab \n", 100, common.ErrMsgTextTooShort},
		{"four characters", "good", 100, common.ErrMsgTextTooShort},
		{"five characters", "great", 100, ""},
		{"five characters padded", "   great  ", 100, ""},
		{"multibyte counts runes", "héllo", 100, ""},
		{"multibyte too short", "日本語", 100, common.ErrMsgTextTooShort},
		{"at the limit", strings.Repeat("a", 10), 10, ""},
		{"over the limit", strings.Repeat("a", 11), 10, common.ErrMsgTextTooLong},
		{"no limit", strings.Repeat("a", 100000), 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText(tt.text, tt.maxLen)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			if assert.True(t, errors.As(err, &ve)) {
				assert.Equal(t, tt.want, ve.Detail)
			}
		})
	}
}
