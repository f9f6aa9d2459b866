package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := SessionExpired("session expired")
	assert.Equal(t, "session expired", err.Error())

	wrapped := Wrap(errors.New("boom"), ErrCodeTokenFetch, "fetch claims")
	assert.Equal(t, "fetch claims: boom", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("network down")
	err := Wrap(cause, ErrCodeProviderUnavailable, "provider unreachable")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsProviderUnavailable(err))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "ignored %d", 1))
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"provider unavailable", ProviderUnavailable("x"), IsProviderUnavailable},
		{"invalid credentials", InvalidCredentials("x"), IsInvalidCredentials},
		{"token fetch", TokenFetch("x"), IsTokenFetch},
		{"session expired", SessionExpired("x"), IsSessionExpired},
		{"insufficient privilege", InsufficientPrivilege("x"), IsInsufficientPrivilege},
		{"malformed claims", MalformedClaims("x"), IsMalformedClaims},
		{"init timeout", InitTimeout("x"), IsInitTimeout},
		{"duplicate route", DuplicateRoute("x"), IsDuplicateRoute},
		{"activation failed", ActivationFailed("x"), IsActivationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(Internal("other")))
		})
	}
}

func TestIsHelpers_WrappedChain(t *testing.T) {
	inner := InvalidCredentials("bad password")
	outer := fmt.Errorf("login: %w", inner)

	assert.True(t, IsInvalidCredentials(outer))
	assert.Equal(t, ErrCodeInvalidCredentials, GetCode(outer))
}

func TestGetCode_NonAppError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
}
