package reactive

import (
	"reflect"
	"sync/atomic"
)

// Subscription is a registered interest in one cell. Dispose stops
// delivery; a subscription disposed while a propagation pass is in
// flight is never invoked by that pass.
type Subscription struct {
	id       uint64
	store    *Store
	cellID   uint64
	callback func(prev, next any)
	equals   func(a, b any) bool

	// last is the value most recently delivered (or the value at
	// subscribe time); the equality compares it against the settled
	// value to suppress no-change callbacks.
	last    any
	hasLast bool

	disposed atomic.Bool
}

// Dispose unregisters the subscription. Safe to call from inside a
// notification callback and idempotent.
func (sub *Subscription) Dispose() {
	if sub.disposed.Swap(true) {
		return
	}
	sub.store.run(func() error {
		if c, ok := sub.store.cells[sub.cellID]; ok {
			for i, x := range c.subs {
				if x == sub {
					c.subs = append(c.subs[:i], c.subs[i+1:]...)
					break
				}
			}
		}
		return nil
	})
}

// Subscribe registers onChange to run after every settled propagation
// pass in which the cell's value changed. The callback receives the
// previously delivered value and the new one, and runs outside the
// store lock, after the whole batch has settled.
func (s *Store) Subscribe(h Handle, onChange func(prev, next any), opts ...SubscribeOption) (*Subscription, error) {
	var sub *Subscription
	err := s.run(func() error {
		c, err := s.checkHandle(h)
		if err != nil {
			return err
		}
		s.nextSubID++
		sub = &Subscription{
			id:       s.nextSubID,
			store:    s,
			cellID:   c.id,
			callback: onChange,
		}
		for _, opt := range opts {
			opt(sub)
		}
		if sub.equals == nil {
			sub.equals = s.equalsFor(c)
		}
		// Prime with the current settled value. A poisoned cell leaves
		// the subscription unprimed; the first successful computation
		// notifies unconditionally.
		if err := s.settleLocked(c); err == nil {
			sub.last = c.value
			sub.hasLast = true
		}
		c.subs = append(c.subs, sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeSelector subscribes through a selector function. The
// selector becomes a derived cell shared by every subscriber using the
// same function, so equivalent selectors share one cached computation
// instead of duplicating work.
func (s *Store) SubscribeSelector(selector func() (any, error), onChange func(prev, next any), opts ...SubscribeOption) (*Subscription, error) {
	h, err := s.selectorCell(selector)
	if err != nil {
		return nil, err
	}
	return s.Subscribe(h, onChange, opts...)
}

// selectorCell returns the derived cell for a selector, creating it on
// first use. Keyed by the selector function's identity.
func (s *Store) selectorCell(selector func() (any, error)) (Handle, error) {
	key := reflect.ValueOf(selector).Pointer()
	var h Handle
	err := s.run(func() error {
		if s.closed {
			return ErrStoreClosed
		}
		if cached, ok := s.selectorCells[key]; ok {
			if c, live := s.cells[cached.id]; live && !c.disposed {
				h = cached
				return nil
			}
		}
		hh, err := s.deriveLocked(selector, cellConfig{})
		if err != nil {
			return err
		}
		s.selectorCells[key] = hh
		h = hh
		return nil
	})
	return h, err
}

// Watch is a store-wide observer receiving the full change set of every
// settled propagation pass. Used by inspection tooling.
type Watch struct {
	id       uint64
	store    *Store
	fn       func([]Change)
	disposed atomic.Bool
}

// Dispose unregisters the watcher.
func (w *Watch) Dispose() {
	if w.disposed.Swap(true) {
		return
	}
	w.store.run(func() error {
		for i, x := range w.store.watchers {
			if x == w {
				w.store.watchers = append(w.store.watchers[:i], w.store.watchers[i+1:]...)
				break
			}
		}
		return nil
	})
}

// Watch registers fn to receive the change set of every settled pass.
// fn runs outside the store lock, after observer callbacks queued by
// the same pass.
func (s *Store) Watch(fn func([]Change)) (*Watch, error) {
	var w *Watch
	err := s.run(func() error {
		if s.closed {
			return ErrStoreClosed
		}
		s.nextSubID++
		w = &Watch{id: s.nextSubID, store: s, fn: fn}
		s.watchers = append(s.watchers, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}
