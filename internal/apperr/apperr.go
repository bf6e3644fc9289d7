// Package apperr defines the structured error type used across the
// pipeline and its mapping to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures for targeted handling and for the
// HTTP error mapping in the handler layer.
type Kind string

const (
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE"
	KindSourceTimeout     Kind = "SOURCE_TIMEOUT"
	KindSourceTooLarge    Kind = "SOURCE_TOO_LARGE"
	KindSourceTransport   Kind = "SOURCE_TRANSPORT"
	KindDecodeFailed      Kind = "DECODE_FAILED"
	KindTranscodeFailed   Kind = "TRANSCODE_FAILED"
	KindStoreTransport    Kind = "STORE_TRANSPORT"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL"
)

// Error carries a kind, the operation that failed and the wrapped cause.
// Status is only set for SOURCE_UNAVAILABLE and holds the origin's HTTP
// status code.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s] %s: origin status %d", e.Kind, e.Op, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// E creates a new Error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Unavailable creates a SOURCE_UNAVAILABLE error carrying the origin status.
func Unavailable(op string, status int) *Error {
	return &Error{Kind: KindSourceUnavailable, Op: op, Status: status}
}

// KindOf extracts the Kind from err, or KindInternal if err is not an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code surfaced to the client.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindSourceUnavailable, KindSourceTransport:
		return http.StatusBadGateway
	case KindSourceTimeout:
		return http.StatusGatewayTimeout
	case KindSourceTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindDecodeFailed, KindTranscodeFailed:
		return http.StatusUnprocessableEntity
	case KindStoreTransport:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Origin status codes
// are surfaced for SOURCE_UNAVAILABLE; everything else stays generic so
// codec and store internals do not leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindSourceUnavailable {
		return fmt.Sprintf("source returned status %d", e.Status)
	}
	switch KindOf(err) {
	case KindInvalidRequest:
		if e != nil && e.Err != nil {
			return e.Err.Error()
		}
		return "invalid request"
	case KindSourceTimeout:
		return "timed out fetching source image"
	case KindSourceTooLarge:
		return "source image exceeds the configured size limit"
	case KindSourceTransport:
		return "failed to fetch source image"
	case KindDecodeFailed, KindTranscodeFailed:
		return "image could not be processed"
	case KindStoreTransport:
		return "storage backend unavailable"
	case KindNotFound:
		return "not found"
	default:
		return "internal server error"
	}
}
