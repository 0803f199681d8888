package blobstore

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
)

// Kind classifies a storage failure so callers can branch on cause without
// inspecting raw errno values.
type Kind int

const (
	// KindIO covers any underlying filesystem fault: permission denied,
	// invalid path, device error, interrupted operation.
	KindIO Kind = iota

	// KindNotFound means the resolved path does not exist.
	KindNotFound

	// KindInsufficientStorage means the capacity quota denied a write. No
	// filesystem mutation has occurred when this is returned.
	KindInsufficientStorage
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindNotFound:
		return "not-found"
	case KindInsufficientStorage:
		return "insufficient-storage"
	default:
		return "unknown"
	}
}

// Error is the uniform failure value returned by every store operation. It
// carries an HTTP-status-like code so the serving layer can map "no room"
// and "I/O problem" to different responses without unwrapping anything.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errIO wraps an underlying filesystem fault. Missing-file faults are
// reported as KindNotFound so metadata and read operations surface them
// distinctly from other I/O problems.
func errIO(message string, err error) *Error {
	if errors.Is(err, fs.ErrNotExist) {
		return &Error{
			Kind:    KindNotFound,
			Status:  http.StatusNotFound,
			Message: message,
			Err:     err,
		}
	}
	return &Error{
		Kind:    KindIO,
		Status:  http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}

// errNotFound reports a missing path without an underlying cause.
func errNotFound(message string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Status:  http.StatusNotFound,
		Message: message,
	}
}

// errInsufficientStorage reports a capacity denial from the quota.
func errInsufficientStorage(err error) *Error {
	return &Error{
		Kind:    KindInsufficientStorage,
		Status:  http.StatusInsufficientStorage,
		Message: "not enough storage space",
		Err:     err,
	}
}

// IsNotFound reports whether err is a storage error for a missing path.
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindNotFound
}

// IsInsufficientStorage reports whether err is a capacity denial.
func IsInsufficientStorage(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindInsufficientStorage
}
