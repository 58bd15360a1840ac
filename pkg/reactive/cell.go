package reactive

import "fmt"

// cellKind distinguishes directly writable cells from computed ones.
type cellKind uint8

const (
	kindSource cellKind = iota
	kindDerived
)

// String returns a human-readable name for the kind.
func (k cellKind) String() string {
	switch k {
	case kindSource:
		return "source"
	case kindDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// cellState tracks the lifecycle of a derived cell's cached value.
type cellState uint8

const (
	// stateValid: the cached value reflects the current input versions.
	stateValid cellState = iota

	// stateStale: an input may have changed; the next read recomputes.
	stateStale

	// stateComputing: the compute function is currently running. A read
	// of a cell in this state is a cyclic dependency.
	stateComputing

	// statePoisoned: the most recent computation failed. Reads return
	// the captured error until a fresh computation succeeds.
	statePoisoned
)

// String returns a human-readable name for the state.
func (st cellState) String() string {
	switch st {
	case stateValid:
		return "valid"
	case stateStale:
		return "stale"
	case stateComputing:
		return "computing"
	case statePoisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}

// cell is the engine-internal representation of one unit of state.
// All fields are guarded by the owning Store's lock.
type cell struct {
	id   uint64
	name string
	kind cellKind

	// value is the current value, opaque to the engine.
	value any

	// version advances on every observed value change, never on no-op
	// writes that compare equal under the cell's equality function.
	version uint64

	// equals overrides the store's default equality when non-nil.
	equals func(a, b any) bool

	// Derived-only fields.

	// compute produces the cell's value. Reads it performs are recorded
	// as dependency edges.
	compute func() (any, error)

	state cellState

	// computed is true once the cell has computed successfully at least
	// once; until then the cached value is meaningless.
	computed bool

	// failure is the ComputationFailure from the last failed run.
	// poison is the Poisoned error returned on subsequent reads.
	failure error
	poison  error

	// deps are the cells read during the most recent computation, in
	// read order, with the version each had at that time. Rebuilt
	// atomically on every run.
	deps        []*cell
	depVersions []uint64

	// height is 1 + the maximum input height (0 for sources). Dirty
	// cells are recomputed in non-decreasing height order so a diamond
	// recomputes each cell at most once per pass.
	height int

	// dependents is the reverse index: derived cells that read this
	// cell during their most recent computation.
	dependents map[uint64]*cell

	// subs are observers attached directly to this cell, in
	// subscription order.
	subs []*Subscription

	disposed bool
}

// label identifies the cell in errors and logs.
func (c *cell) label() string {
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("cell#%d", c.id)
}
