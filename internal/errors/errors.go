package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes an authentication/authorization failure.
type Kind string

const (
	// KindInvalidCredentials indicates the backend rejected a login attempt.
	KindInvalidCredentials Kind = "invalid_credentials"
	// KindRefreshInvalid indicates the refresh token is missing, expired, or
	// revoked. This is terminal: the session must be fully cleared.
	KindRefreshInvalid Kind = "refresh_invalid"
	// KindUnauthorized indicates the access token was rejected on a
	// bearer-authed call.
	KindUnauthorized Kind = "unauthorized"
	// KindNetwork indicates the backend was unreachable or timed out.
	KindNetwork Kind = "network"
	// KindServer indicates a 5xx from the backend.
	KindServer Kind = "server"
	// KindValidation indicates the backend rejected the request payload.
	KindValidation Kind = "validation"
)

// AuthError is the single error type crossing the identity-client boundary.
// Raw transport errors never leak past it. It supports error wrapping for
// use with errors.Is and errors.As.
type AuthError struct {
	// Kind categorizes the failure for machine checks.
	Kind Kind
	// Message is a human-readable message safe to surface to the user.
	Message string
	// Cause is the underlying error (optional).
	Cause error
	// Field names the offending input field for validation errors (optional).
	Field string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// InvalidCredentials creates an invalid-credentials error. The message is
// deliberately field-independent to avoid account enumeration.
func InvalidCredentials() *AuthError {
	return &AuthError{
		Kind:    KindInvalidCredentials,
		Message: "invalid email or password",
	}
}

// RefreshInvalid creates a terminal refresh-failure error.
func RefreshInvalid(cause error) *AuthError {
	return &AuthError{
		Kind:    KindRefreshInvalid,
		Message: "session expired",
		Cause:   cause,
	}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *AuthError {
	return &AuthError{
		Kind:    KindUnauthorized,
		Message: message,
	}
}

// Network creates a network error wrapping the transport failure.
func Network(cause error) *AuthError {
	return &AuthError{
		Kind:    KindNetwork,
		Message: "identity backend unreachable",
		Cause:   cause,
	}
}

// Server creates a server error for a backend 5xx.
func Server(message string) *AuthError {
	return &AuthError{
		Kind:    KindServer,
		Message: message,
	}
}

// Serverf creates a server error with a formatted message.
func Serverf(format string, args ...any) *AuthError {
	return &AuthError{
		Kind:    KindServer,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a validation error.
func Validation(message string) *AuthError {
	return &AuthError{
		Kind:    KindValidation,
		Message: message,
	}
}

// ValidationField creates a validation error for a specific field.
func ValidationField(field, message string) *AuthError {
	return &AuthError{
		Kind:    KindValidation,
		Message: message,
		Field:   field,
	}
}

// Wrap wraps an existing error with an AuthError, preserving the cause.
func Wrap(err error, kind Kind, message string) *AuthError {
	if err == nil {
		return nil
	}
	return &AuthError{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// isKind checks if an error carries a specific kind.
func isKind(err error, kind Kind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// IsInvalidCredentials checks if an error is an invalid-credentials error.
func IsInvalidCredentials(err error) bool {
	return isKind(err, KindInvalidCredentials)
}

// IsRefreshInvalid checks if an error is a terminal refresh failure.
func IsRefreshInvalid(err error) bool {
	return isKind(err, KindRefreshInvalid)
}

// IsUnauthorized checks if an error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return isKind(err, KindUnauthorized)
}

// IsNetwork checks if an error is a network error.
func IsNetwork(err error) bool {
	return isKind(err, KindNetwork)
}

// IsServer checks if an error is a server error.
func IsServer(err error) bool {
	return isKind(err, KindServer)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// KindOf returns the Kind from an error, or empty string if it is not an
// AuthError.
func KindOf(err error) Kind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}

// FieldOf returns the Field from an error, or empty string when absent.
func FieldOf(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Field
	}
	return ""
}
