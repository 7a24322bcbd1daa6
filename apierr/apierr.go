// Package apierr defines the error taxonomy shared by every component of the
// client. The server reports failures in a handful of ad hoc shapes (sometimes
// `error`, sometimes `reason`, sometimes nested `details`); the transport layer
// normalizes all of them into *Error values that unwrap to one of the kind
// sentinels below, so callers select behaviour with errors.Is and read the
// payload off the struct.
package apierr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every *Error unwraps to exactly one of these.
var (
	// ErrUnauthenticated means the request carried no token or an invalid one.
	// The API client treats it as the trigger for refresh-and-retry.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired means the refresh itself failed: there is no session
	// left to recover and the caller must treat it as a hard logout.
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBanned carries the ban reason in Error.Reason and must be rendered
	// distinctly from generic failures.
	ErrBanned           = errors.New("account banned")
	ErrValidationFailed = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrServerError      = errors.New("server error")
)

// Error is the single typed representation of an API failure.
type Error struct {
	Kind    error               // one of the sentinels above
	Status  int                 // HTTP status, 0 for transport-level failures
	Message string              // human-readable message from the error body
	Details map[string][]string // field-level validation messages, if any
	Reason  string              // ban reason, only set for ErrBanned
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

// New builds an Error of the given kind.
func New(kind error, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an *Error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ReasonOf returns the ban reason carried by err, or "" when there is none.
func ReasonOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Reason
	}
	return ""
}

// DetailsOf returns the field-level validation messages carried by err.
func DetailsOf(err error) map[string][]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Details
	}
	return nil
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
