// Package apperr defines the closed set of error kinds the service
// dispatches on, per the error handling design: the Fetcher only retries,
// and everything downstream reacts to a kind rather than re-deriving one
// from string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds the system distinguishes.
type Kind int

const (
	// KindTransport covers network/timeout/non-2xx failures after retries.
	KindTransport Kind = iota
	// KindRateLimited covers a 429 surfaced after the retry budget is exhausted.
	KindRateLimited
	// KindValidation covers a malformed request.
	KindValidation
	// KindParse covers an unparseable price string or unexpected response shape.
	KindParse
	// KindNotFound covers an unknown job or collection id.
	KindNotFound
	// KindFatal covers engine-level failures: empty inputs, no valid target.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not_found"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying its Kind and, for KindRateLimited, the
// server-directed retry delay.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int64 // milliseconds; only meaningful for KindRateLimited
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// RetryAfterMs implements the duck-typed interface the Sync Worker's failure
// handler inspects: any error exposing this method (typed or not) can drive
// a worker pause.
func (e *Error) RetryAfterMs() (int64, bool) {
	if e.Kind != KindRateLimited {
		return 0, false
	}
	return e.RetryAfter, true
}

// New builds an Error of the given kind wrapping cause (which may be nil).
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// RateLimited builds a KindRateLimited error carrying the retry-after delay.
func RateLimited(retryAfterMs int64, cause error) *Error {
	return &Error{Kind: KindRateLimited, Message: "rate limited", RetryAfter: retryAfterMs, cause: cause}
}

// Transport builds a KindTransport error.
func Transport(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, cause: cause}
}

// Validation builds a KindValidation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound builds a KindNotFound error.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Fatal builds a KindFatal error (engine-level, surfaces as 400).
func Fatal(message string) *Error {
	return &Error{Kind: KindFatal, Message: message}
}

// As extracts an *Error from err, following the wrap chain, mirroring the
// teacher's use of errors.As/errors.Is at the boundaries that dispatch on
// error identity.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// RetryAfterMs inspects err (and any typed *Error in its chain) for a
// duck-typed RetryAfterMs() (int64, bool) method, as spec.md §4.5 requires
// of the Sync Worker's failure handler: "either a typed rate-limit error or
// a duck-typed field".
func RetryAfterMs(err error) (int64, bool) {
	type retryAfterer interface {
		RetryAfterMs() (int64, bool)
	}
	var r retryAfterer
	if errors.As(err, &r) {
		return r.RetryAfterMs()
	}
	return 0, false
}
