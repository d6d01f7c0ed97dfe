// Package pullerrors defines the error taxonomy used throughout the pull
// engine: ConfigError, NetworkError, NotFoundError, ParseError,
// IntegrityError, RecursionError, StoreError, and Cancelled. Every kind is
// a *StoreError{Code, Message, Path, Err}; network and store failures keep
// their underlying cause in Err, reachable through Unwrap.
package pullerrors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a StoreError.
type ErrorCode int

const (
	// ErrConfig marks missing/invalid local or remote configuration, an
	// unsupported remote_mode, or a malformed URL.
	ErrConfig ErrorCode = iota + 1
	// ErrNetwork marks a fetch failure other than 404, or a cancelled request.
	ErrNetwork
	// ErrNotFound marks a 404 response.
	ErrNotFound
	// ErrParse marks bad UTF-8, a bad ref line, an invalid digest/filename,
	// or malformed metadata.
	ErrParse
	// ErrIntegrity marks a computed-digest/expected-digest mismatch.
	ErrIntegrity
	// ErrRecursion marks traversal beyond MAX_RECURSION.
	ErrRecursion
	// ErrStore marks local disk I/O or transaction failure.
	ErrStore
	// ErrCancelled marks cooperative cancellation.
	ErrCancelled
)

func (c ErrorCode) String() string {
	switch c {
	case ErrConfig:
		return "ConfigError"
	case ErrNetwork:
		return "NetworkError"
	case ErrNotFound:
		return "NotFoundError"
	case ErrParse:
		return "ParseError"
	case ErrIntegrity:
		return "IntegrityError"
	case ErrRecursion:
		return "RecursionError"
	case ErrStore:
		return "StoreError"
	case ErrCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// StoreError is the taxonomy's concrete error type. Path, when set, names
// the object, ref, or URL the error concerns.
type StoreError struct {
	Code    ErrorCode
	Message string
	Path    string
	Err     error // wrapped cause, if any
}

func (e *StoreError) Error() string {
	var base string
	if e.Path != "" {
		base = fmt.Sprintf("%s: %s (path: %s)", e.Code, e.Message, e.Path)
	} else {
		base = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, &pullerrors.StoreError{Code: c}) match any
// StoreError with the same Code, so a StoreError carrying only a Code
// works as a per-code sentinel.
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func newf(code ErrorCode, path string, format string, args ...any) *StoreError {
	return &StoreError{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewConfigError reports invalid/missing configuration.
func NewConfigError(path, format string, args ...any) *StoreError {
	return newf(ErrConfig, path, format, args...)
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(path string, cause error) *StoreError {
	return &StoreError{Code: ErrNetwork, Message: "request failed", Path: path, Err: cause}
}

// NewNotFoundError reports a 404 response.
func NewNotFoundError(path string) *StoreError {
	return newf(ErrNotFound, path, "not found")
}

// NewParseError reports malformed wire content.
func NewParseError(path, format string, args ...any) *StoreError {
	return newf(ErrParse, path, format, args...)
}

// NewIntegrityError reports a digest mismatch between expected and computed.
func NewIntegrityError(path string, expected, computed fmt.Stringer) *StoreError {
	return newf(ErrIntegrity, path, "digest mismatch: expected %s, got %s", expected, computed)
}

// NewRecursionError reports traversal beyond MAX_RECURSION.
func NewRecursionError(path string, depth int) *StoreError {
	return newf(ErrRecursion, path, "recursion depth %d exceeds MAX_RECURSION", depth)
}

// NewStoreError wraps a local disk I/O or transaction failure.
func NewStoreError(path string, cause error) *StoreError {
	return &StoreError{Code: ErrStore, Message: "store operation failed", Path: path, Err: cause}
}

// ErrCancelledSentinel is returned when cooperative cancellation is observed.
var ErrCancelledSentinel = &StoreError{Code: ErrCancelled, Message: "operation cancelled"}

// IsNotFound reports whether err (or any error it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrNotFound
}

// IsIntegrity reports whether err (or any error it wraps) is an IntegrityError.
func IsIntegrity(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrIntegrity
}

// IsCancelled reports whether err (or any error it wraps) is a Cancelled error.
func IsCancelled(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrCancelled
}

// ErrDeltaNotSupported is returned if the engine is ever asked to decode a
// static delta descriptor. Observing that one is present and falling back
// to the object-by-object path is not an error; decoding one is rejected
// outright rather than attempted or silently ignored.
var ErrDeltaNotSupported = newf(ErrConfig, "", "static delta decoding is not supported")
