package domain

import (
	"chat-sync/errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateText checks that a chat text meets content requirements.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is empty", errors.ErrInvalidMessage)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text contains invalid UTF-8", errors.ErrInvalidMessage)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("%w: text exceeds %d character limit", errors.ErrInvalidMessage, MaxTextChars)
	}
	return nil
}
