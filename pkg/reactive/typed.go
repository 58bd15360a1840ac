package reactive

import "fmt"

// Cell is a typed source cell. The zero value is unusable; create cells
// with NewCell or wrap a handle with CellOf.
type Cell[T any] struct {
	h Handle
}

// NewCell creates a typed source cell. Panics on a duplicate name or a
// closed store; both are programming errors.
func NewCell[T any](s *Store, name string, initial T, opts ...CellOption) Cell[T] {
	if name != "" {
		opts = append(opts, WithName(name))
	}
	h, err := s.Source(initial, opts...)
	if err != nil {
		panic(err)
	}
	return Cell[T]{h: h}
}

// CellOf wraps an existing source handle, typically obtained from
// Store.Lookup after NewStoreWithCells.
func CellOf[T any](h Handle) Cell[T] {
	return Cell[T]{h: h}
}

// Handle returns the untyped handle.
func (c Cell[T]) Handle() Handle {
	return c.h
}

// Get returns the current value. Inside a compute function the read is
// recorded as a dependency.
func (c Cell[T]) Get() (T, error) {
	return typedRead[T](c.h, (*Store).Read)
}

// MustGet is Get for compute functions: it panics with the engine
// error, which the computation runner captures and converts into a
// poisoned state. Upstream failures chain through unchanged.
func (c Cell[T]) MustGet() T {
	v, err := c.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Peek returns the current value without recording a dependency.
func (c Cell[T]) Peek() (T, error) {
	return typedRead[T](c.h, (*Store).Peek)
}

// Set writes a new value, propagating and notifying unless the value
// compares equal to the current one.
func (c Cell[T]) Set(v T) error {
	if c.h.IsZero() {
		return fmt.Errorf("%w: zero cell", ErrUnknownCell)
	}
	return c.h.store.Write(c.h, v)
}

// Update atomically applies fn to the current value and writes the
// result, all inside one batch.
func (c Cell[T]) Update(fn func(T) T) error {
	if c.h.IsZero() {
		return fmt.Errorf("%w: zero cell", ErrUnknownCell)
	}
	s := c.h.store
	return s.run(func() error {
		cur, err := c.Peek()
		if err != nil {
			return err
		}
		return s.Write(c.h, fn(cur))
	})
}

// Derived is a typed derived cell created with NewDerived.
type Derived[T any] struct {
	h Handle
}

// NewDerived creates a typed derived cell. The compute function runs
// lazily inside a dependency-recording scope; read inputs with MustGet
// (or Get) on other typed cells. Panics on a duplicate name or a closed
// store.
func NewDerived[T any](s *Store, compute func() (T, error), opts ...CellOption) Derived[T] {
	h, err := s.Derive(func() (any, error) {
		return compute()
	}, opts...)
	if err != nil {
		panic(err)
	}
	return Derived[T]{h: h}
}

// DerivedOf wraps an existing derived handle.
func DerivedOf[T any](h Handle) Derived[T] {
	return Derived[T]{h: h}
}

// Handle returns the untyped handle.
func (d Derived[T]) Handle() Handle {
	return d.h
}

// Get returns the cached value, recomputing first if an input changed.
func (d Derived[T]) Get() (T, error) {
	return typedRead[T](d.h, (*Store).Read)
}

// MustGet panics with the engine error; see Cell.MustGet.
func (d Derived[T]) MustGet() T {
	v, err := d.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Peek returns the settled value without recording a dependency.
func (d Derived[T]) Peek() (T, error) {
	return typedRead[T](d.h, (*Store).Peek)
}

// Observe is a typed Subscribe.
func Observe[T any](s *Store, h Handle, onChange func(prev, next T), opts ...SubscribeOption) (*Subscription, error) {
	return s.Subscribe(h, func(prev, next any) {
		var p, n T
		if prev != nil {
			p, _ = prev.(T)
		}
		if next != nil {
			n, _ = next.(T)
		}
		onChange(p, n)
	}, opts...)
}

// typedRead reads through an untyped accessor and asserts the result.
func typedRead[T any](h Handle, read func(*Store, Handle) (any, error)) (T, error) {
	var zero T
	if h.IsZero() {
		return zero, fmt.Errorf("%w: zero cell", ErrUnknownCell)
	}
	v, err := read(h.store, h)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("reflow: cell#%d holds %T, not %T", h.id, v, zero)
	}
	return t, nil
}
