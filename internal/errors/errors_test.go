package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassifiesEveryMappedCode(t *testing.T) {
	cases := []struct {
		code ErrorCode
		kind ErrorKind
	}{
		{ErrBadRequest, KindMalformed},
		{ErrValidationFailed, KindMalformed},
		{ErrMissingRequiredField, KindMalformed},
		{ErrInvalidDataType, KindMalformed},
		{ErrInvalidConversationID, KindMalformed},
		{ErrDatabaseError, KindTransient},
		{ErrCacheError, KindTransient},
		{ErrServiceUnavailable, KindTransient},
		{ErrBrokerError, KindTransient},
		{ErrPresenceUnavailable, KindTransient},
		{ErrResourceNotFound, KindStale},
		{ErrConversationNotFound, KindStale},
		{ErrMessageNotFound, KindStale},
	}
	for _, tc := range cases {
		err := New(tc.code, "test")
		assert.Equal(t, tc.kind, err.Kind(), "code %s", tc.code)
	}
}

func TestKindDefaultsToFatalForUnmappedCode(t *testing.T) {
	err := New(ErrInternalServer, "boom")
	assert.Equal(t, KindFatal, err.Kind())
}

func TestStatusCodeFallsBackToInternalServerError(t *testing.T) {
	err := New(ErrorCode("SOMETHING_NEW"), "boom")
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
}

func TestWrapPreservesExistingAppError(t *testing.T) {
	original := New(ErrBrokerError, "dial failed")
	wrapped := Wrap(original, ErrDatabaseError)
	assert.Same(t, original, wrapped)
	assert.Equal(t, ErrBrokerError, wrapped.Code)
}

func TestWrapConvertsPlainError(t *testing.T) {
	wrapped := Wrap(errors.New("plain"), ErrCacheError)
	assert.Equal(t, ErrCacheError, wrapped.Code)
	assert.Equal(t, "plain", wrapped.Message)
}

func TestIsAppErrorDistinguishesPlainErrors(t *testing.T) {
	appErr, ok := IsAppError(New(ErrBadRequest, "x"))
	require.True(t, ok)
	assert.Equal(t, ErrBadRequest, appErr.Code)

	_, ok = IsAppError(errors.New("plain"))
	assert.False(t, ok)
}
