package reactive

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Use errors.Is to
// classify errors returned by Store operations; the concrete value is
// usually a *CellError carrying the affected cell and the underlying
// cause.
var (
	// ErrInvalidMutation is returned for writes to derived cells and
	// for writes issued from inside a compute function.
	ErrInvalidMutation = errors.New("reflow: invalid mutation")

	// ErrUnknownCell is returned when a handle does not belong to the
	// store, or refers to a cell that has been disposed.
	ErrUnknownCell = errors.New("reflow: unknown cell")

	// ErrCyclicDependency is returned when a derived cell's computation
	// reads the cell itself, directly or transitively.
	ErrCyclicDependency = errors.New("reflow: cyclic dependency")

	// ErrComputationFailure is returned from the batch that triggered a
	// failing computation. It wraps the compute function's error.
	ErrComputationFailure = errors.New("reflow: computation failed")

	// ErrPoisoned is returned when reading a cell whose most recent
	// computation failed and has not since succeeded.
	ErrPoisoned = errors.New("reflow: cell poisoned")

	// ErrStoreClosed is returned for operations on a closed store.
	ErrStoreClosed = errors.New("reflow: store closed")
)

// CellError is an engine error tied to a specific cell. It wraps one of
// the sentinel errors above (Kind) and, where applicable, the underlying
// cause (for example the error returned by a compute function).
type CellError struct {
	// Kind is the sentinel this error classifies as.
	Kind error

	// Cell is the cell's name, or "cell#<id>" for unnamed cells.
	Cell string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CellError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), e.Cell, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Cell)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CellError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error classifies as target.
func (e *CellError) Is(target error) bool {
	return target == e.Kind
}

// cellErr builds a *CellError for the given cell.
func cellErr(kind error, c *cell, cause error) *CellError {
	return &CellError{Kind: kind, Cell: c.label(), Cause: cause}
}
