package reactive

// Reducer constrains a source cell's write path to
// reduce(current, action), giving reducer-style state machines the same
// auditability as plain cells without a separate mechanism. The backing
// cell participates in derivations and subscriptions like any other.
type Reducer[S, A any] struct {
	cell   Cell[S]
	reduce func(S, A) S
}

// NewReducer creates a reducer-backed source cell holding initial.
func NewReducer[S, A any](s *Store, name string, initial S, reduce func(S, A) S, opts ...CellOption) *Reducer[S, A] {
	return &Reducer[S, A]{
		cell:   NewCell(s, name, initial, opts...),
		reduce: reduce,
	}
}

// Dispatch applies an action through the reducer and writes the result.
// Runs as one atomic read-modify-write; propagation follows the normal
// batch protocol.
func (r *Reducer[S, A]) Dispatch(action A) error {
	return r.cell.Update(func(cur S) S {
		return r.reduce(cur, action)
	})
}

// State returns the current state.
func (r *Reducer[S, A]) State() (S, error) {
	return r.cell.Get()
}

// Cell returns the backing cell, for derivations and subscriptions.
func (r *Reducer[S, A]) Cell() Cell[S] {
	return r.cell
}
