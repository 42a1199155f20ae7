package authlink

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorDoesNotMutateSentinel(t *testing.T) {
	cause := errors.New("boom")

	err := newError(ErrStore, cause, map[string]any{"operation": "find"})

	require.NotSame(t, ErrStore, asRichError(err))
	assert.Nil(t, ErrStore.Source)
	assert.Empty(t, ErrStore.Metadata)
	assert.True(t, IsStoreError(err))
	assert.Equal(t, "find", asRichError(err).Metadata["operation"])
}

func TestHTTPStatusAndPublicMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "nil", err: nil, status: http.StatusOK, message: ""},
		{name: "not authenticated", err: newError(ErrNotAuthenticated, nil, nil), status: http.StatusForbidden, message: "You are not authorized."},
		{name: "validation", err: newError(ErrValidation, nil, nil), status: http.StatusBadRequest, message: "Invalid request."},
		{name: "auth not found", err: newError(ErrAuthNotFound, nil, nil), status: http.StatusNotFound, message: "Not found."},
		{name: "expired", err: newError(ErrTokenExpired, nil, nil), status: http.StatusUnauthorized, message: "Invalid or missing access token."},
		{name: "revoked", err: newError(ErrTokenRevoked, nil, nil), status: http.StatusUnauthorized, message: "Invalid or missing access token."},
		{name: "user not found", err: newError(ErrUserNotFound, nil, nil), status: http.StatusUnauthorized, message: "Invalid or missing access token."},
		{name: "issuance", err: newError(ErrIssuance, errors.New("db down"), nil), status: http.StatusInternalServerError, message: "JSON web token could not be created"},
		{name: "store", err: storeError("op", errors.New("db down")), status: http.StatusInternalServerError, message: "An unexpected error occurred"},
		{name: "plain error", err: errors.New("secret detail"), status: http.StatusInternalServerError, message: "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.message, PublicMessage(tt.err))
		})
	}
}

func TestIsValidationFailure(t *testing.T) {
	for _, base := range []error{
		ErrMalformedToken, ErrInvalidSignature, ErrTokenExpired, ErrTokenEarly,
		ErrAudienceMismatch, ErrTokenMissing, ErrTokenNotFound, ErrTokenRevoked, ErrUserNotFound,
	} {
		assert.True(t, IsValidationFailure(base), base.Error())
	}
	assert.False(t, IsValidationFailure(ErrStore))
	assert.False(t, IsValidationFailure(errors.New("token is expired")))
	assert.False(t, IsValidationFailure(nil))
}

func TestLogFields(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, []any{"error", plain}, LogFields(plain))

	fields := LogFields(newError(ErrTokenExpired, plain, map[string]any{"reason": "late"}))
	require.Len(t, fields, 10)
	assert.Equal(t, TextCodeTokenExpired, fields[3])
	assert.Equal(t, "details", fields[6])
	assert.Contains(t, fields[7], "late")
	assert.Equal(t, "boom", fields[9])
}
