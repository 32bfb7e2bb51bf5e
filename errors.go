package scoped

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound indicates a name is not visible from the current scope:
	// it was never set in any ancestor layer, or its nearest occurrence is a
	// tombstone left by a delete.
	ErrNotBound = errors.New("scoped: name not bound in any visible scope")

	// ErrUnsupportedOperation indicates the selected backend cannot honour
	// the requested suspension or entry style. It is fatal to the call and
	// never retried.
	ErrUnsupportedOperation = errors.New("scoped: operation not supported by backend")

	// ErrGeneratorRunning indicates a second driver attempted to resume a
	// generator that is mid-step. Generators are single-driver by contract.
	ErrGeneratorRunning = errors.New("scoped: generator already running")

	// ErrGeneratorClosed indicates a resume attempt on a generator that has
	// completed, faulted, or been closed.
	ErrGeneratorClosed = errors.New("scoped: generator closed")

	// ErrClosed is delivered to a suspended generator body when the driver
	// closes the handle. Bodies may intercept it to run cleanup, which
	// executes with the handle's own bindings still active.
	ErrClosed = errors.New("scoped: close requested")

	// ErrStreamClosed indicates a resume attempt on a finished stream.
	ErrStreamClosed = errors.New("scoped: stream closed")

	// ErrExecutorClosed indicates a submission to a shut-down executor.
	ErrExecutorClosed = errors.New("scoped: executor closed")
)

// errNoActiveScope signals that no ancestor of the current scope owns a
// binding layer. It is internal: Set consumes it to create the implicit root
// layer, and every other operation surfaces it as ErrNotBound.
var errNoActiveScope = errors.New("scoped: no active scope")

// NotBoundError carries the name that failed to resolve. It unwraps to
// ErrNotBound so callers can branch with errors.Is.
type NotBoundError struct {
	Name string
}

func (e *NotBoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scoped: %q not bound in any visible scope", e.Name)
}

func (e *NotBoundError) Unwrap() error {
	return ErrNotBound
}

func notBound(name string) error {
	return &NotBoundError{Name: name}
}
