// Package fault provides the closed error-kind taxonomy shared by fetchers,
// the delivery engine, and the stores.
package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Kind classifies a failure for retry decisions.
// Values are a closed set; callers switch on them exhaustively.
type Kind uint8

const (
	// KindUnknown is for unclassified errors.
	KindUnknown Kind = iota

	// KindTransient is for connection resets, timeouts, aborted streams and DNS failures.
	KindTransient

	// KindRateLimited is for upstream throttling.
	KindRateLimited

	// KindValidation is for payloads rejected as malformed or too large.
	KindValidation

	// KindExtraction is for markup or JSON that lacks the expected shape.
	KindExtraction

	// KindPersistence is for snapshot load/save failures.
	KindPersistence
)

// String returns the lowercase kind label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindExtraction:
		return "extraction"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New tags err with kind and an operation label. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a tagged error from a format string.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from any error chain, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether a retry may succeed for err.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	default:
		return false
	}
}

// FromNetwork tags err as transient when it is a reset, timeout, aborted
// stream or resolution failure. Other errors are tagged KindUnknown.
// Caller cancellation is never transient.
func FromNetwork(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return New(KindUnknown, op, err)
	}
	if isTransientNetwork(err) {
		return New(KindTransient, op, err)
	}
	return New(KindUnknown, op, err)
}

// FromStatus tags an HTTP status failure. 429 is rate limited, 400 and 413
// are validation, 5xx and 408 are transient.
func FromStatus(op string, status int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	switch {
	case status == http.StatusTooManyRequests:
		return New(KindRateLimited, op, err)
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
		return New(KindValidation, op, err)
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return New(KindTransient, op, err)
	default:
		return New(KindUnknown, op, err)
	}
}

func isTransientNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
