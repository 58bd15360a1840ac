package reactive

import "fmt"

// passState accumulates the writes of one batch and the value changes
// of the propagation pass that closes it.
type passState struct {
	// dirty are the source cells whose value changed in this batch.
	dirty     []*cell
	dirtySeen map[uint64]struct{}

	// touched records the pre-batch value of every cell whose version
	// moved during the batch, in touch order. Used to build the change
	// set after the pass settles.
	touched map[uint64]*touchEntry
	order   []uint64
}

type touchEntry struct {
	c   *cell
	old any
	had bool
}

func newPassState() *passState {
	return &passState{
		dirtySeen: make(map[uint64]struct{}),
		touched:   make(map[uint64]*touchEntry),
	}
}

// touch records a cell's first pre-pass value.
func (p *passState) touch(c *cell, old any, had bool) {
	if _, ok := p.touched[c.id]; ok {
		return
	}
	p.touched[c.id] = &touchEntry{c: c, old: old, had: had}
	p.order = append(p.order, c.id)
}

// markDirty adds a source cell to the pending-dirty set.
func (p *passState) markDirty(c *cell) {
	if _, ok := p.dirtySeen[c.id]; ok {
		return
	}
	p.dirtySeen[c.id] = struct{}{}
	p.dirty = append(p.dirty, c)
}

// Batch groups multiple writes into a single propagation pass. Batches
// nest; only the outermost close propagates and notifies. The batch is
// closed, and propagation runs, even if fn panics.
//
// The returned error joins any computation failures the pass surfaced;
// independent branches of the graph still propagate.
func (s *Store) Batch(fn func()) error {
	return s.run(func() error {
		if s.closed {
			return ErrStoreClosed
		}
		if len(s.scopes) > 0 || s.propagating {
			return fmt.Errorf("%w: batch opened during computation", ErrInvalidMutation)
		}
		s.beginBatchLocked()
		var err error
		func() {
			defer func() {
				err = s.closeBatchLocked()
			}()
			fn()
		}()
		return err
	})
}

// beginBatchLocked opens a batch scope, creating the pass state at the
// outermost open.
func (s *Store) beginBatchLocked() {
	if s.batchDepth == 0 {
		s.pass = newPassState()
		if s.metrics != nil {
			s.metrics.batches.Inc()
		}
	}
	s.batchDepth++
}

// closeBatchLocked closes one batch scope; the outermost close triggers
// the propagation pass.
func (s *Store) closeBatchLocked() error {
	s.batchDepth--
	if s.batchDepth > 0 {
		return nil
	}
	return s.propagateLocked()
}
