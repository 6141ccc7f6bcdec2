package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is returned by Digest for usage errors.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the digest run, when one was started.
	RunID string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDigestInProgress indicates Digest was called while a digest
	// was already running on the same engine.
	ErrCodeDigestInProgress RuntimeErrorCode = "DIGEST_IN_PROGRESS"

	// ErrCodeTTLExceeded indicates the tree did not settle within the
	// iteration budget.
	ErrCodeTTLExceeded RuntimeErrorCode = "TTL_EXCEEDED"

	// ErrCodeListenerFailed indicates a listener returned an error or panicked.
	// Only carried by ListenerError; never returned from Digest.
	ErrCodeListenerFailed RuntimeErrorCode = "LISTENER_FAILED"

	// ErrCodeWatchFailed indicates a getter panicked. The watcher is treated
	// as clean for that check. Only carried by ListenerError.
	ErrCodeWatchFailed RuntimeErrorCode = "WATCH_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewTTLError creates the error raised when the iteration budget is exceeded.
func NewTTLError(runID string, ttl int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTTLExceeded,
		Message: fmt.Sprintf("%d digest() iterations reached. Aborting!", ttl),
		RunID:   runID,
	}
}

// IsDigestInProgress returns true if err is a reentrant digest rejection.
// Uses errors.As to handle wrapped errors.
func IsDigestInProgress(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDigestInProgress
	}
	return false
}

// IsTTLExceeded returns true if err is an iteration budget abort.
func IsTTLExceeded(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeTTLExceeded
	}
	return false
}

// ListenerError describes a listener or getter failure inside a digest.
//
// It is reported (logger, metrics, signals, Recorder, error handler) and
// never aborts the digest.
type ListenerError struct {
	Code      RuntimeErrorCode
	RunID     string
	Watch     string
	Node      string
	Iteration int

	// Cause is the returned error, or a wrapped panic value.
	Cause error

	// Panicked is set when Cause came from a recovered panic.
	Panicked bool
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("%s: watch %q on node %s (iteration %d): %v",
		e.Code, e.Watch, e.Node, e.Iteration, e.Cause)
}

func (e *ListenerError) Unwrap() error {
	return e.Cause
}

// IsListenerError returns true if err is or wraps a ListenerError.
func IsListenerError(err error) bool {
	var le *ListenerError
	return errors.As(err, &le)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
