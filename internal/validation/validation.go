// Package validation holds the sanitization and bounds checks applied to
// client-supplied message content before it is persisted or distributed.
package validation

import (
	"strings"

	"chatmesh/internal/errors"
)

const maxMessageContentLength = 4000

// ValidateMessageContent enforces the bounds a chat message's content
// must satisfy before it is accepted off the wire.
func ValidateMessageContent(content string) error {
	if content == "" {
		return errors.New(errors.ErrMissingRequiredField, "content is required")
	}

	if len(content) > maxMessageContentLength {
		return errors.NewWithDetails(
			errors.ErrValidationFailed,
			"content exceeds maximum length",
			map[string]interface{}{
				"max_length": maxMessageContentLength,
				"actual":     len(content),
			},
		)
	}

	return nil
}

// SanitizeString trims surrounding whitespace and strips control
// characters (other than newline, carriage return, and tab) from
// client-supplied text before it is stored or relayed.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, input)
}
