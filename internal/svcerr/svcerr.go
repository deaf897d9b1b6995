// Package svcerr defines the structured error taxonomy crossing the container
// supervision core's boundary: every error returned to a caller
// carries a stable Kind, the originating errno when one exists, and a short
// human context string.
package svcerr

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds surfaced across the API boundary.
type Kind string

// Recognized error kinds.
const (
	InvalidValue          Kind = "InvalidValue"
	InvalidState           Kind = "InvalidState"
	InvalidProperty        Kind = "InvalidProperty"
	InvalidData            Kind = "InvalidData"
	ContainerAlreadyExists Kind = "ContainerAlreadyExists"
	ContainerDoesNotExist  Kind = "ContainerDoesNotExist"
	Permission             Kind = "Permission"
	NotSupported           Kind = "NotSupported"
	Busy                   Kind = "Busy"
	Unknown                Kind = "Unknown"
)

// Error is the structured error value carried across the API boundary.
type Error struct {
	Kind    Kind
	Errno   syscall.Errno
	Context string
	cause   error
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s: %s (errno %d)", e.Kind, e.Context, e.Errno)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New builds a validation/resource class error: no stack is attached since
// these are routine, expected outcomes, not exceptional ones.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Context: fmt.Sprintf(format, args...)}
}

// Errno builds an error carrying the originating errno.
func Errno(kind Kind, errno syscall.Errno, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Errno: errno, Context: fmt.Sprintf(format, args...)}
}

// Wrap classifies an unexpected failure as Unknown, attaching a stack via
// pkg/errors so the embedded errno (if any) survives log correlation. This is
// the only class of svcerr.Error that carries a stack trace.
func Wrap(cause error, format string, args ...interface{}) *Error {
	wrapped := errors.Wrap(cause, fmt.Sprintf(format, args...))
	e := &Error{Kind: Unknown, Context: wrapped.Error(), cause: wrapped}
	var errno syscall.Errno
	if errors.As(cause, &errno) {
		e.Errno = errno
	}
	return e
}

// FromKnobWrite classifies a cgroup knob write failure: EBUSY on
// memory.limit_in_bytes specifically means "limit too low", everything else
// degrades to Unknown with the errno attached.
func FromKnobWrite(knob string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.EBUSY && knob == "memory.limit_in_bytes" {
			return New(InvalidValue, "limit too low")
		}
		return Errno(Unknown, errno, "knob write %s failed", knob)
	}
	return Wrap(err, "knob write %s failed", knob)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
