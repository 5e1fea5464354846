// Package apperr defines the typed domain errors shared by every warden component
// and their mapping onto HTTP status codes and machine-readable error codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a domain error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimit
)

// Error codes exposed to clients
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeInternal       = "INTERNAL_ERROR"
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

// Code returns the client-facing error code for the kind
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return CodeValidation
	case KindAuthentication:
		return CodeAuthentication
	case KindAuthorization:
		return CodeAuthorization
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	case KindRateLimit:
		return CodeRateLimit
	default:
		return CodeInternal
	}
}

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a kind, a message safe to return to clients,
// and optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}

	// RetryAfter is set on rate limit errors
	RetryAfter time.Duration

	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error {
	return e.err
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Code returns the client-facing error code
func (e *Error) Code() string {
	return e.Kind.Code()
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.Kind.Status()
}

// WithDetails attaches structured details and returns the same error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrRateLimit      = &Error{Kind: KindRateLimit}
)

// Validation returns a 400 error
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Validationf returns a 400 error with a formatted message
func Validationf(format string, args ...interface{}) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Authentication returns a 401 error. An empty message defaults to "Authentication required".
func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Kind: KindAuthentication, Message: message}
}

// Authorization returns a 403 error. An empty message defaults to "Insufficient permissions".
func Authorization(message string) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return &Error{Kind: KindAuthorization, Message: message}
}

// NotFound returns a 404 error with the message "<resource> not found"
func NotFound(resource string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Conflict returns a 409 error
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// RateLimit returns a 429 error carrying the wait until the window resets
func RateLimit(retryAfter time.Duration) *Error {
	secs := int64((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &Error{
		Kind:       KindRateLimit,
		Message:    fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", secs),
		RetryAfter: time.Duration(secs) * time.Second,
	}
}

// Internal wraps an unexpected failure. The message is never shown to clients.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, err: err}
}

// KindOf returns the kind of err, or KindInternal for errors that are not *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a domain error of kind k
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// As extracts the *Error from err
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
