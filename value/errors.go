package value

import (
	"errors"
	"fmt"
)

// CopyErrorCode categorizes Copy failures.
type CopyErrorCode string

const (
	// ErrCodeImmutableDestination: the destination is a typed array or array buffer.
	ErrCodeImmutableDestination CopyErrorCode = "IMMUTABLE_DESTINATION"

	// ErrCodeIdenticalSource: source and destination are the same reference.
	ErrCodeIdenticalSource CopyErrorCode = "IDENTICAL_SOURCE"

	// ErrCodeWindowSource: a window was reached while copying.
	ErrCodeWindowSource CopyErrorCode = "WINDOW_SOURCE"

	// ErrCodeKindMismatch: source and destination cannot be merged.
	ErrCodeKindMismatch CopyErrorCode = "KIND_MISMATCH"

	// ErrCodeUnclonable: a host value does not implement Cloner.
	ErrCodeUnclonable CopyErrorCode = "UNCLONABLE"
)

// CopyError is returned by Copy when a copy cannot be made.
type CopyError struct {
	Code    CopyErrorCode
	Message string
}

// Error implements the error interface.
func (e *CopyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCopyError reports whether err is a CopyError with the given code.
// An empty code matches any CopyError.
func IsCopyError(err error, code CopyErrorCode) bool {
	var ce *CopyError
	if errors.As(err, &ce) {
		return code == "" || ce.Code == code
	}
	return false
}

func newCopyError(code CopyErrorCode, msg string) *CopyError {
	return &CopyError{Code: code, Message: msg}
}
