// Package reactive provides a fine-grained reactive cell store.
//
// A Store holds cells: source cells, which are written directly, and
// derived cells, whose values are computed from other cells. Dependencies
// are tracked automatically at runtime: reading a cell inside a compute
// function records an edge from the derived cell to the cell being read,
// so the dependency set follows the actual control flow of each
// computation.
//
// # Core Types
//
// Cell[T] is a typed source cell:
//
//	count := reactive.NewCell(store, "count", 0)
//	n, _ := count.Get()   // read
//	count.Set(5)          // write (propagates and notifies)
//	count.Update(func(n int) int { return n + 1 })
//
// Derived[T] is a cached derived computation:
//
//	doubled := reactive.NewDerived(store, func() (int, error) {
//	    return count.MustGet() * 2, nil
//	})
//	n, _ := doubled.Get() // recomputes only if an input changed
//
// Subscriptions observe settled values:
//
//	sub, _ := store.Subscribe(doubled.Handle(), func(old, new any) {
//	    fmt.Println("doubled:", old, "->", new)
//	})
//	defer sub.Dispose()
//
// # Batching
//
// Multiple writes can be batched into a single propagation pass:
//
//	store.Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})  // one recompute pass, one notification per changed cell
//
// Batches nest; only the outermost close propagates. A write issued with
// no open batch behaves as a single-write batch, so observers always see
// fully settled state.
//
// # Failure Semantics
//
// A compute function that returns an error (or panics) poisons its cell:
// the last good value is kept, reads return the captured failure, and
// cells downstream of the poisoned cell are skipped while independent
// branches of the graph continue to propagate. The failure is also
// returned from the call that closed the batch. A poisoned cell recovers
// as soon as one of its inputs changes and a fresh computation succeeds.
//
// # Concurrency
//
// Each Store owns an exclusive propagation lock. Writes, batches, and
// recomputation of stale derived cells are serialized on that lock;
// reads from other goroutines go through the same path, so two
// goroutines never race to compute the same derived cell. Observer
// callbacks run after the lock is released and may freely re-enter the
// store. Multiple stores are fully independent.
package reactive
