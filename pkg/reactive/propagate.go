package reactive

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Change describes one cell whose value changed during a settled
// propagation pass.
type Change struct {
	Handle  Handle
	Name    string
	Old     any
	New     any
	Version uint64
}

// notification is one pending observer callback.
type notification struct {
	sub  *Subscription
	prev any
	next any
}

// watchDelivery is one pending store-wide watcher callback.
type watchDelivery struct {
	w       *Watch
	changes []Change
}

// deliveryQueue holds callbacks computed under the lock, invoked after
// it is released so observers can freely re-enter the store.
type deliveryQueue struct {
	notes   []notification
	watches []watchDelivery
}

func (q *deliveryQueue) deliver() {
	if q == nil {
		return
	}
	for _, n := range q.notes {
		if n.sub.disposed.Load() {
			continue
		}
		n.sub.callback(n.prev, n.next)
	}
	for _, wd := range q.watches {
		if wd.w.disposed.Load() {
			continue
		}
		wd.w.fn(wd.changes)
	}
}

func (s *Store) queue() *deliveryQueue {
	if s.delivery == nil {
		s.delivery = &deliveryQueue{}
	}
	return s.delivery
}

// propagateLocked runs one propagation pass: mark the transitive
// dependents of the dirty sources stale, recompute them in
// non-decreasing height order, then queue notifications for every
// observer whose subscribed value actually changed.
func (s *Store) propagateLocked() error {
	pass := s.pass
	defer func() { s.pass = nil }()
	if pass == nil || len(pass.dirty) == 0 {
		return nil
	}

	start := time.Now()
	var span trace.Span
	if s.tracer != nil {
		_, span = s.tracer.Start(context.Background(), "reflow.propagate",
			trace.WithAttributes(attribute.Int("reflow.dirty_sources", len(pass.dirty))))
		defer span.End()
	}

	// Mark phase: everything transitively downstream of a changed
	// source may need recomputation. Poisoned cells are marked too so
	// an input change retries them.
	marked := make(map[uint64]*cell)
	queue := append([]*cell(nil), pass.dirty...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, d := range c.dependents {
			if d.disposed {
				continue
			}
			if _, seen := marked[d.id]; seen {
				continue
			}
			marked[d.id] = d
			if d.state == stateValid || d.state == statePoisoned {
				d.state = stateStale
			}
			queue = append(queue, d)
		}
	}

	order := make([]*cell, 0, len(marked))
	for _, d := range marked {
		order = append(order, d)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].height != order[j].height {
			return order[i].height < order[j].height
		}
		return order[i].id < order[j].id
	})

	// Recompute phase. settleLocked skips cells whose inputs settled to
	// unchanged values, and poisons cells downstream of a failure while
	// independent branches continue. Only root failures surface; errors
	// caused by an upstream poison are already represented by theirs.
	s.propagating = true
	var failures []error
	for _, c := range order {
		if c.disposed || c.state != stateStale {
			continue
		}
		if err := s.settleLocked(c); err != nil {
			if !errors.Is(err, ErrPoisoned) {
				failures = append(failures, err)
			}
		}
	}
	s.propagating = false

	// Change set: cells whose settled value differs from the pre-batch
	// value. A write that was reverted within the batch advanced the
	// version but does not notify.
	changes := make([]Change, 0, len(pass.order))
	for _, id := range pass.order {
		tc := pass.touched[id]
		c := tc.c
		if c.disposed {
			continue
		}
		if tc.had && s.equalsFor(c)(tc.old, c.value) {
			continue
		}
		changes = append(changes, Change{
			Handle:  Handle{store: s, id: c.id},
			Name:    c.name,
			Old:     tc.old,
			New:     c.value,
			Version: c.version,
		})
	}

	// Notification plan: per changed cell, in subscription order. The
	// observer list is snapshotted here; a subscription disposed before
	// delivery is checked again and never invoked.
	for _, ch := range changes {
		c := pass.touched[ch.Handle.id].c
		for _, sub := range append([]*Subscription(nil), c.subs...) {
			if sub.disposed.Load() {
				continue
			}
			if sub.hasLast && sub.equals(sub.last, c.value) {
				continue
			}
			s.queue().notes = append(s.queue().notes, notification{sub: sub, prev: sub.last, next: c.value})
			sub.last = c.value
			sub.hasLast = true
			if s.metrics != nil {
				s.metrics.notifications.Inc()
			}
		}
	}
	if len(changes) > 0 && len(s.watchers) > 0 {
		for _, w := range s.watchers {
			if w.disposed.Load() {
				continue
			}
			s.queue().watches = append(s.queue().watches, watchDelivery{w: w, changes: changes})
		}
	}

	if s.metrics != nil {
		s.metrics.propagation.Observe(time.Since(start).Seconds())
	}
	if s.debug {
		s.logger.Debug("propagation pass",
			"dirty", len(pass.dirty),
			"marked", len(marked),
			"changed", len(changes),
			"failures", len(failures),
			"elapsed", time.Since(start))
	}

	err := errors.Join(failures...)
	if span != nil {
		span.SetAttributes(
			attribute.Int("reflow.marked", len(marked)),
			attribute.Int("reflow.changed", len(changes)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	return err
}
