package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmesh/internal/errors"
)

func TestValidateMessageContentRejectsEmpty(t *testing.T) {
	err := ValidateMessageContent("")
	require.Error(t, err)
	appErr, ok := errors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrMissingRequiredField, appErr.Code)
}

func TestValidateMessageContentRejectsOverlong(t *testing.T) {
	err := ValidateMessageContent(strings.Repeat("a", maxMessageContentLength+1))
	require.Error(t, err)
	appErr, ok := errors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrValidationFailed, appErr.Code)
}

func TestValidateMessageContentAcceptsOrdinaryText(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hello there"))
}

func TestSanitizeStringTrimsWhitespace(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  "))
}

func TestSanitizeStringStripsControlCharactersButKeepsNewlines(t *testing.T) {
	got := SanitizeString("hi\x00there\nfriend\x07")
	assert.Equal(t, "hithere\nfriend", got)
}
