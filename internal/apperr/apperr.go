// Package apperr holds the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrQuotaExceeded      = errors.New("daily free limit reached. Upgrade to Pro for unlimited itineraries")
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("admin access required")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidTransition  = errors.New("payment is not in a state that allows this action")
	ErrPersistence        = errors.New("internal server error")
)

// ValidationError names the request field that is missing or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing required field: " + e.Field
}

// Missing is shorthand for a ValidationError on an absent field.
func Missing(field string) error {
	return &ValidationError{Field: field}
}

// Invalid is shorthand for a ValidationError with a custom message.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TooLong reports a value longer than its column allows.
func TooLong(field string, max int) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, max)}
}

// DateFormatError reports a date that is not YYYY-MM-DD.
type DateFormatError struct {
	Field string
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date for %s: %q (expected YYYY-MM-DD)", e.Field, e.Value)
}

// ProviderError wraps a failed or unusable generation call. It is
// absorbed by the fallback chain and never reaches a client.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Persistence marks err as a storage failure. The cause stays available
// to errors.Is/As for logging but is never shown to callers.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return &persistenceError{cause: err}
}

type persistenceError struct {
	cause error
}

func (e *persistenceError) Error() string {
	return fmt.Sprintf("persistence: %v", e.cause)
}

func (e *persistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *persistenceError) Unwrap() error {
	return e.cause
}

// Status maps an error to the HTTP status it is surfaced with.
func Status(err error) int {
	var validation *ValidationError
	var date *DateFormatError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation), errors.As(err, &date):
		return http.StatusBadRequest
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing text for err. Anything unclassified
// collapses to the generic internal error.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return ErrPersistence.Error()
	}
	return err.Error()
}
