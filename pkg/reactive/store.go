package reactive

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Handle is a stable reference to a cell within a Store. Handles from
// one store are rejected by every other store with ErrUnknownCell.
type Handle struct {
	store *Store
	id    uint64
}

// IsZero reports whether the handle refers to no cell.
func (h Handle) IsZero() bool {
	return h.store == nil
}

// ID returns the cell's numeric identity within its store.
func (h Handle) ID() uint64 {
	return h.id
}

// Store holds a graph of reactive cells and serializes all mutation and
// propagation on an exclusive lock. Create stores with NewStore or
// NewStoreWithCells; multiple stores coexist without interference.
type Store struct {
	id     string
	logger *slog.Logger
	debug  bool

	metrics *Metrics
	tracer  trace.Tracer

	// mu is the propagation lock. lockOwner holds the goroutine id of
	// the current holder so compute functions can re-enter the public
	// API without deadlocking.
	mu        sync.Mutex
	lockOwner atomic.Uint64

	closed        bool
	nextCellID    uint64
	nextSubID     uint64
	cells         map[uint64]*cell
	names         map[string]uint64
	defaultEquals func(a, b any) bool

	scopes      []*recordScope
	batchDepth  int
	propagating bool
	pass        *passState

	selectorCells map[uintptr]Handle
	watchers      []*Watch

	// delivery accumulates settled notifications; they are invoked
	// after the lock is released.
	delivery *deliveryQueue
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		id:            uuid.NewString(),
		logger:        slog.Default().With("component", "store"),
		cells:         make(map[uint64]*cell),
		names:         make(map[string]uint64),
		defaultEquals: DefaultEquals,
		selectorCells: make(map[uintptr]Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStoreWithCells creates a store pre-populated with named source
// cells holding the given initial values.
func NewStoreWithCells(initial map[string]any, opts ...StoreOption) *Store {
	s := NewStore(opts...)

	names := make([]string, 0, len(initial))
	for name := range initial {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := s.Source(initial[name], WithName(name)); err != nil {
			// Names are unique by map construction; only a closed
			// store could fail here, and this store is fresh.
			panic(err)
		}
	}
	return s
}

// ID returns the store's unique identity.
func (s *Store) ID() string {
	return s.id
}

// run executes fn with the store lock held. When the current goroutine
// already holds the lock (a compute function re-entering through a
// typed read), fn runs directly. Queued notifications are delivered
// after the lock is released.
func (s *Store) run(fn func() error) error {
	gid := goroutineID()
	if s.lockOwner.Load() == gid {
		return fn()
	}
	s.mu.Lock()
	s.lockOwner.Store(gid)
	defer func() {
		q := s.delivery
		s.delivery = nil
		s.lockOwner.Store(0)
		s.mu.Unlock()
		q.deliver()
	}()
	return fn()
}

// checkHandle resolves a handle to a live cell.
func (s *Store) checkHandle(h Handle) (*cell, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if h.store != s {
		return nil, fmt.Errorf("%w: handle does not belong to this store", ErrUnknownCell)
	}
	c, ok := s.cells[h.id]
	if !ok || c.disposed {
		return nil, fmt.Errorf("%w: cell#%d", ErrUnknownCell, h.id)
	}
	return c, nil
}

// equalsFor returns the effective equality function for a cell.
func (s *Store) equalsFor(c *cell) func(a, b any) bool {
	if c.equals != nil {
		return c.equals
	}
	return s.defaultEquals
}

// newCellLocked allocates and registers a cell.
func (s *Store) newCellLocked(kind cellKind, cfg cellConfig) (*cell, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if cfg.name != "" {
		if _, dup := s.names[cfg.name]; dup {
			return nil, fmt.Errorf("reflow: duplicate cell name %q", cfg.name)
		}
	}
	s.nextCellID++
	c := &cell{
		id:     s.nextCellID,
		name:   cfg.name,
		kind:   kind,
		equals: cfg.equals,
	}
	s.cells[c.id] = c
	if c.name != "" {
		s.names[c.name] = c.id
	}
	if s.metrics != nil {
		s.metrics.cells.Inc()
	}
	return c, nil
}

// Source creates a directly writable cell holding initial.
func (s *Store) Source(initial any, opts ...CellOption) (Handle, error) {
	var cfg cellConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var h Handle
	err := s.run(func() error {
		c, err := s.newCellLocked(kindSource, cfg)
		if err != nil {
			return err
		}
		c.value = initial
		h = Handle{store: s, id: c.id}
		return nil
	})
	return h, err
}

// Derive creates a derived cell computed by compute. The computation is
// lazy: it first runs on the first read, inside a dependency-recording
// scope, and thereafter only when an input's value changed.
func (s *Store) Derive(compute func() (any, error), opts ...CellOption) (Handle, error) {
	var cfg cellConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var h Handle
	err := s.run(func() error {
		hh, err := s.deriveLocked(compute, cfg)
		if err != nil {
			return err
		}
		h = hh
		return nil
	})
	return h, err
}

func (s *Store) deriveLocked(compute func() (any, error), cfg cellConfig) (Handle, error) {
	c, err := s.newCellLocked(kindDerived, cfg)
	if err != nil {
		return Handle{}, err
	}
	c.compute = compute
	c.state = stateStale
	c.height = 1
	return Handle{store: s, id: c.id}, nil
}

// Read returns the cell's current value, recomputing first if the cell
// is derived and an input changed. Inside a compute function, Read also
// records a dependency edge.
func (s *Store) Read(h Handle) (any, error) {
	var v any
	err := s.run(func() error {
		c, err := s.checkHandle(h)
		if err != nil {
			return err
		}
		v, err = s.readLocked(c)
		return err
	})
	return v, err
}

// Peek returns the cell's current value without recording a dependency.
// A stale derived cell still recomputes first.
func (s *Store) Peek(h Handle) (any, error) {
	var v any
	err := s.run(func() error {
		c, err := s.checkHandle(h)
		if err != nil {
			return err
		}
		if err := s.settleLocked(c); err != nil {
			return err
		}
		v = c.value
		return nil
	})
	return v, err
}

// Write updates a source cell. A value equal to the current one under
// the cell's equality is a no-op: no version advance, no notification.
// With no open batch the write is an implicit single-write batch, so
// observers only ever see fully settled state. The returned error
// carries any computation failures from the propagation it triggered.
func (s *Store) Write(h Handle, v any) error {
	return s.run(func() error {
		c, err := s.checkHandle(h)
		if err != nil {
			return err
		}
		if c.kind == kindDerived {
			return cellErr(ErrInvalidMutation, c, errors.New("cell is derived"))
		}
		if len(s.scopes) > 0 || s.propagating {
			return cellErr(ErrInvalidMutation, c, errors.New("write during computation"))
		}
		if s.metrics != nil {
			s.metrics.writes.Inc()
		}
		implicit := s.batchDepth == 0
		if implicit {
			s.beginBatchLocked()
		}
		if !s.equalsFor(c)(c.value, v) {
			old := c.value
			c.value = v
			c.version++
			s.pass.touch(c, old, true)
			s.pass.markDirty(c)
		}
		if implicit {
			return s.closeBatchLocked()
		}
		return nil
	})
}

// Lookup returns the handle of a named cell.
func (s *Store) Lookup(name string) (Handle, bool) {
	var h Handle
	var ok bool
	s.run(func() error {
		if id, found := s.names[name]; found {
			if c, live := s.cells[id]; live && !c.disposed {
				h, ok = Handle{store: s, id: id}, true
			}
		}
		return nil
	})
	return h, ok
}

// DisposeCell removes a cell from the store. Its edges and
// subscriptions are removed; derived cells that still read it become
// poisoned with ErrUnknownCell on their next computation.
func (s *Store) DisposeCell(h Handle) error {
	return s.run(func() error {
		c, err := s.checkHandle(h)
		if err != nil {
			return err
		}
		if len(s.scopes) > 0 || s.propagating {
			return cellErr(ErrInvalidMutation, c, errors.New("dispose during computation"))
		}
		s.disposeCellLocked(c)
		return nil
	})
}

func (s *Store) disposeCellLocked(c *cell) {
	c.disposed = true
	for _, dep := range c.deps {
		if dep.dependents != nil {
			delete(dep.dependents, c.id)
		}
	}
	c.deps, c.depVersions = nil, nil
	c.dependents = nil
	for _, sub := range c.subs {
		sub.disposed.Store(true)
	}
	c.subs = nil
	if c.name != "" {
		delete(s.names, c.name)
	}
	delete(s.cells, c.id)
	if s.metrics != nil {
		s.metrics.cells.Dec()
	}
}

// Close disposes every cell and watcher. Subsequent operations return
// ErrStoreClosed.
func (s *Store) Close() {
	s.run(func() error {
		if s.closed {
			return nil
		}
		cells := make([]*cell, 0, len(s.cells))
		for _, c := range s.cells {
			cells = append(cells, c)
		}
		for _, c := range cells {
			s.disposeCellLocked(c)
		}
		for _, w := range s.watchers {
			w.disposed.Store(true)
		}
		s.watchers = nil
		s.selectorCells = nil
		s.closed = true
		return nil
	})
}

// CellInfo describes one cell in a store snapshot.
type CellInfo struct {
	ID      uint64   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Kind    string   `json:"kind"`
	State   string   `json:"state"`
	Version uint64   `json:"version"`
	Height  int      `json:"height"`
	Value   any      `json:"value"`
	Deps    []uint64 `json:"deps,omitempty"`
}

// Snapshot reports every live cell as it currently stands, without
// forcing recomputation. Intended for inspection and debugging.
func (s *Store) Snapshot() []CellInfo {
	var infos []CellInfo
	s.run(func() error {
		infos = make([]CellInfo, 0, len(s.cells))
		for _, c := range s.cells {
			info := CellInfo{
				ID:      c.id,
				Name:    c.name,
				Kind:    c.kind.String(),
				State:   stateValid.String(),
				Version: c.version,
				Height:  c.height,
				Value:   c.value,
			}
			if c.kind == kindDerived {
				info.State = c.state.String()
				info.Deps = make([]uint64, 0, len(c.deps))
				for _, dep := range c.deps {
					info.Deps = append(info.Deps, dep.id)
				}
			}
			infos = append(infos, info)
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
		return nil
	})
	return infos
}
