package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeProviderUnavailable indicates the identity provider could not be reached.
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"
	// ErrCodeInvalidCredentials indicates a sign-in attempt with a bad email/password.
	ErrCodeInvalidCredentials ErrorCode = "invalid_credentials"
	// ErrCodeTokenFetch indicates claims could not be fetched or refreshed.
	ErrCodeTokenFetch ErrorCode = "token_fetch"
	// ErrCodeSessionExpired indicates the credential's claims have expired.
	ErrCodeSessionExpired ErrorCode = "session_expired"
	// ErrCodeInsufficientPrivilege indicates the credential lacks admin privilege.
	ErrCodeInsufficientPrivilege ErrorCode = "insufficient_privilege"
	// ErrCodeMalformedClaims indicates claims were missing or unusable.
	ErrCodeMalformedClaims ErrorCode = "malformed_claims"
	// ErrCodeInitTimeout indicates session initialization exceeded its deadline.
	ErrCodeInitTimeout ErrorCode = "init_timeout"
	// ErrCodeDuplicateRoute indicates a route path was registered twice.
	ErrCodeDuplicateRoute ErrorCode = "duplicate_route"
	// ErrCodeActivationFailed indicates a route activation callback failed.
	ErrCodeActivationFailed ErrorCode = "activation_failed"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ProviderUnavailable creates a new ProviderUnavailable error.
func ProviderUnavailable(message string) *AppError {
	return New(ErrCodeProviderUnavailable, message)
}

// InvalidCredentials creates a new InvalidCredentials error.
func InvalidCredentials(message string) *AppError {
	return New(ErrCodeInvalidCredentials, message)
}

// TokenFetch creates a new TokenFetch error.
func TokenFetch(message string) *AppError {
	return New(ErrCodeTokenFetch, message)
}

// SessionExpired creates a new SessionExpired error.
func SessionExpired(message string) *AppError {
	return New(ErrCodeSessionExpired, message)
}

// InsufficientPrivilege creates a new InsufficientPrivilege error.
func InsufficientPrivilege(message string) *AppError {
	return New(ErrCodeInsufficientPrivilege, message)
}

// MalformedClaims creates a new MalformedClaims error.
func MalformedClaims(message string) *AppError {
	return New(ErrCodeMalformedClaims, message)
}

// InitTimeout creates a new InitTimeout error.
func InitTimeout(message string) *AppError {
	return New(ErrCodeInitTimeout, message)
}

// DuplicateRoute creates a new DuplicateRoute error.
func DuplicateRoute(message string) *AppError {
	return New(ErrCodeDuplicateRoute, message)
}

// ActivationFailed creates a new ActivationFailed error.
func ActivationFailed(message string) *AppError {
	return New(ErrCodeActivationFailed, message)
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsProviderUnavailable checks if an error is a ProviderUnavailable error.
func IsProviderUnavailable(err error) bool {
	return isCode(err, ErrCodeProviderUnavailable)
}

// IsInvalidCredentials checks if an error is an InvalidCredentials error.
func IsInvalidCredentials(err error) bool {
	return isCode(err, ErrCodeInvalidCredentials)
}

// IsTokenFetch checks if an error is a TokenFetch error.
func IsTokenFetch(err error) bool {
	return isCode(err, ErrCodeTokenFetch)
}

// IsSessionExpired checks if an error is a SessionExpired error.
func IsSessionExpired(err error) bool {
	return isCode(err, ErrCodeSessionExpired)
}

// IsInsufficientPrivilege checks if an error is an InsufficientPrivilege error.
func IsInsufficientPrivilege(err error) bool {
	return isCode(err, ErrCodeInsufficientPrivilege)
}

// IsMalformedClaims checks if an error is a MalformedClaims error.
func IsMalformedClaims(err error) bool {
	return isCode(err, ErrCodeMalformedClaims)
}

// IsInitTimeout checks if an error is an InitTimeout error.
func IsInitTimeout(err error) bool {
	return isCode(err, ErrCodeInitTimeout)
}

// IsDuplicateRoute checks if an error is a DuplicateRoute error.
func IsDuplicateRoute(err error) bool {
	return isCode(err, ErrCodeDuplicateRoute)
}

// IsActivationFailed checks if an error is an ActivationFailed error.
func IsActivationFailed(err error) bool {
	return isCode(err, ErrCodeActivationFailed)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
