package reactive

// readLocked returns a cell's settled value and records the read in the
// innermost recording scope, if any. The scope records even when the
// read fails, so a failing computation keeps the edges it needs for a
// retry once an input changes.
func (s *Store) readLocked(c *cell) (any, error) {
	if sc := s.currentScope(); sc != nil {
		sc.record(c)
	}
	if err := s.settleLocked(c); err != nil {
		return nil, err
	}
	return c.value, nil
}

// settleLocked brings a cell up to date. Source cells are always
// settled. For derived cells it settles the inputs first, then
// recomputes only if an input's version moved since the last
// computation, so a diamond graph recomputes each cell at most once per
// propagation pass.
func (s *Store) settleLocked(c *cell) error {
	if c.disposed {
		return cellErr(ErrUnknownCell, c, nil)
	}
	if c.kind != kindDerived {
		return nil
	}

	switch c.state {
	case stateComputing:
		return cellErr(ErrCyclicDependency, c, nil)
	case statePoisoned:
		return c.poison
	case stateValid:
		if c.computed {
			return nil
		}
	}

	// Stale or never computed. Settle the recorded inputs so the
	// version check below sees their final values.
	for _, dep := range c.deps {
		if err := s.settleLocked(dep); err != nil {
			return s.poisonLocked(c, err)
		}
	}
	if c.computed && c.failure == nil && s.inputsCurrentLocked(c) {
		c.state = stateValid
		return nil
	}
	return s.recomputeLocked(c)
}

// inputsCurrentLocked reports whether every input still has the version
// recorded at the cell's last computation. This is the cache validity
// invariant: the cached value holds iff this returns true.
func (s *Store) inputsCurrentLocked(c *cell) bool {
	for i, dep := range c.deps {
		if dep.disposed || dep.version != c.depVersions[i] {
			return false
		}
	}
	return true
}

// recomputeLocked runs the compute function inside a fresh recording
// scope and installs the result. The cache is replaced atomically: new
// value, new edge set, new version snapshot, or, on failure, poison
// with the last good value retained.
func (s *Store) recomputeLocked(c *cell) error {
	c.state = stateComputing
	sc := &recordScope{owner: c, seen: make(map[uint64]struct{})}
	s.scopes = append(s.scopes, sc)

	value, err := runCompute(c.compute)

	s.scopes = s.scopes[:len(s.scopes)-1]
	if s.metrics != nil {
		s.metrics.recomputes.Inc()
	}

	if err != nil {
		s.installEdgesLocked(c, sc.reads)
		return s.poisonLocked(c, err)
	}

	old, had := c.value, c.computed
	if !had || !s.equalsFor(c)(old, value) {
		c.value = value
		c.version++
		if s.pass != nil {
			s.pass.touch(c, old, had)
		}
	}
	c.computed = true
	c.state = stateValid
	c.failure, c.poison = nil, nil
	s.installEdgesLocked(c, sc.reads)
	return nil
}

// poisonLocked marks a cell failed. The cell keeps its last good value;
// reads return the Poisoned error until a fresh computation succeeds.
// Returns the ComputationFailure delivered to the batch that triggered
// the failing run.
func (s *Store) poisonLocked(c *cell, cause error) error {
	c.failure = cellErr(ErrComputationFailure, c, cause)
	c.poison = cellErr(ErrPoisoned, c, c.failure)
	c.state = statePoisoned
	if s.metrics != nil {
		s.metrics.poisonings.Inc()
	}
	s.logger.Warn("cell poisoned", "cell", c.label(), "err", cause)
	return c.failure
}

// installEdgesLocked atomically replaces a cell's dependency edges with
// the reads from its most recent computation, updating the reverse
// index and the cell's height.
func (s *Store) installEdgesLocked(c *cell, reads []*cell) {
	for _, dep := range c.deps {
		if dep.dependents != nil {
			delete(dep.dependents, c.id)
		}
	}

	c.deps = reads
	c.depVersions = c.depVersions[:0]
	height := 1
	for _, dep := range reads {
		c.depVersions = append(c.depVersions, dep.version)
		if dep.dependents == nil {
			dep.dependents = make(map[uint64]*cell)
		}
		dep.dependents[c.id] = c
		if dep.height+1 > height {
			height = dep.height + 1
		}
	}
	c.height = height
}
