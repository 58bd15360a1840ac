package reactive

import (
	"fmt"
	"runtime"
)

// recordScope captures the cells read while a derived cell computes.
// Scopes form a stack on the Store: nested recomputation pushes a new
// scope, so a read is always attributed to the innermost computation.
type recordScope struct {
	owner *cell
	reads []*cell
	seen  map[uint64]struct{}
}

// record appends a read to the provisional input set, deduplicated.
func (sc *recordScope) record(c *cell) {
	if c == sc.owner {
		return
	}
	if _, ok := sc.seen[c.id]; ok {
		return
	}
	sc.seen[c.id] = struct{}{}
	sc.reads = append(sc.reads, c)
}

// currentScope returns the innermost recording scope, or nil when no
// computation is running.
func (s *Store) currentScope() *recordScope {
	if len(s.scopes) == 0 {
		return nil
	}
	return s.scopes[len(s.scopes)-1]
}

// runCompute executes a compute function, converting panics into
// errors. Engine errors panicked by MustGet keep their classification
// through the cause chain.
func runCompute(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("compute panicked: %v", r)
			}
		}
	}()
	return fn()
}

// goroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header. Used to make the store lock
// reentrant for compute functions that re-enter the public API.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
