package reactive

import (
	"errors"
	"strings"
	"testing"
)

func TestDerivedLazyAndMemoized(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(2)

	computes := 0
	d, _ := s.Derive(func() (any, error) {
		computes++
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		return v.(int) * v.(int), nil
	})

	// Creation does not compute.
	if computes != 0 {
		t.Fatalf("expected 0 computes before first read, got %d", computes)
	}

	if v, _ := s.Read(d); v != 4 {
		t.Errorf("expected 4, got %v", v)
	}
	if computes != 1 {
		t.Errorf("expected 1 compute after first read, got %d", computes)
	}

	// Repeated reads without input change reuse the cached value.
	s.Read(d)
	s.Read(d)
	if computes != 1 {
		t.Errorf("repeated reads should not recompute, got %d", computes)
	}

	s.Write(h, 3)
	if v, _ := s.Read(d); v != 9 {
		t.Errorf("expected 9 after write, got %v", v)
	}
	if computes != 2 {
		t.Errorf("expected 2 computes after input change, got %d", computes)
	}
}

func TestDerivedUnchangedValueCutsOff(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(1)

	parity, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		return v.(int) % 2, nil
	})

	downstream := 0
	d2, _ := s.Derive(func() (any, error) {
		downstream++
		return s.Read(parity)
	})

	if v, _ := s.Read(d2); v != 1 {
		t.Fatalf("expected parity 1, got %v", v)
	}
	if downstream != 1 {
		t.Fatalf("expected 1 downstream compute, got %d", downstream)
	}

	// 1 -> 3: parity recomputes to the same value, downstream is spared.
	s.Write(h, 3)
	if v, _ := s.Read(d2); v != 1 {
		t.Errorf("expected parity 1, got %v", v)
	}
	if downstream != 1 {
		t.Errorf("unchanged intermediate should cut off, got %d downstream computes", downstream)
	}

	s.Write(h, 4)
	if v, _ := s.Read(d2); v != 0 {
		t.Errorf("expected parity 0, got %v", v)
	}
	if downstream != 2 {
		t.Errorf("expected 2 downstream computes, got %d", downstream)
	}
}

func TestDynamicDependencies(t *testing.T) {
	s := NewStore()
	flag, _ := s.Source(true)
	a, _ := s.Source("a")
	b, _ := s.Source("b")

	computes := 0
	d, _ := s.Derive(func() (any, error) {
		computes++
		f, err := s.Read(flag)
		if err != nil {
			return nil, err
		}
		if f.(bool) {
			return s.Read(a)
		}
		return s.Read(b)
	})

	if v, _ := s.Read(d); v != "a" {
		t.Fatalf("expected a, got %v", v)
	}

	// While the flag selects a, writes to b are invisible.
	s.Write(b, "b2")
	s.Read(d)
	if computes != 1 {
		t.Errorf("write to unread branch should not recompute, got %d", computes)
	}

	// Switching the flag rewires the dependency set.
	s.Write(flag, false)
	if v, _ := s.Read(d); v != "b2" {
		t.Errorf("expected b2 after switch, got %v", v)
	}
	if computes != 2 {
		t.Fatalf("expected 2 computes, got %d", computes)
	}

	// Now a is the unread branch.
	s.Write(a, "a2")
	s.Read(d)
	if computes != 2 {
		t.Errorf("write to dropped dependency should not recompute, got %d", computes)
	}
	s.Write(b, "b3")
	if v, _ := s.Read(d); v != "b3" {
		t.Errorf("expected b3, got %v", v)
	}
	if computes != 3 {
		t.Errorf("expected 3 computes, got %d", computes)
	}
}

func TestDiamondComputesOnce(t *testing.T) {
	s := NewStore()
	root, _ := s.Source(1)

	leftComputes, rightComputes, joinComputes := 0, 0, 0
	left, _ := s.Derive(func() (any, error) {
		leftComputes++
		v, err := s.Read(root)
		if err != nil {
			return nil, err
		}
		return v.(int) + 1, nil
	})
	right, _ := s.Derive(func() (any, error) {
		rightComputes++
		v, err := s.Read(root)
		if err != nil {
			return nil, err
		}
		return v.(int) * 10, nil
	})
	join, _ := s.Derive(func() (any, error) {
		joinComputes++
		l, err := s.Read(left)
		if err != nil {
			return nil, err
		}
		r, err := s.Read(right)
		if err != nil {
			return nil, err
		}
		return l.(int) + r.(int), nil
	})

	if v, _ := s.Read(join); v != 12 {
		t.Fatalf("expected 12, got %v", v)
	}

	// One write must recompute each cell exactly once, and join must
	// never observe a half-updated diamond.
	seen := []int{}
	sub, err := s.Subscribe(join, func(prev, next any) {
		seen = append(seen, next.(int))
	})
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	defer sub.Dispose()

	if err := s.Write(root, 2); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if leftComputes != 2 || rightComputes != 2 || joinComputes != 2 {
		t.Errorf("computes = %d/%d/%d, want 2/2/2", leftComputes, rightComputes, joinComputes)
	}
	if len(seen) != 1 || seen[0] != 23 {
		t.Errorf("observer saw %v, want [23]", seen)
	}
	if v, _ := s.Read(join); v != 23 {
		t.Errorf("expected 23, got %v", v)
	}
}

func TestCycleDetected(t *testing.T) {
	s := NewStore()

	var d Handle
	d, _ = s.Derive(func() (any, error) {
		return s.Read(d)
	})

	_, err := s.Read(d)
	if !errors.Is(err, ErrCyclicDependency) && !errors.Is(err, ErrComputationFailure) {
		t.Fatalf("expected a cycle failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "cyclic") {
		t.Errorf("error should mention the cycle, got %q", err)
	}
}

func TestIndirectCycleDetected(t *testing.T) {
	s := NewStore()
	flag, _ := s.Source(false)

	var a, b Handle
	a, _ = s.Derive(func() (any, error) {
		f, err := s.Read(flag)
		if err != nil {
			return nil, err
		}
		if !f.(bool) {
			return 0, nil
		}
		return s.Read(b)
	})
	b, _ = s.Derive(func() (any, error) {
		return s.Read(a)
	})

	// Acyclic while the flag is off.
	if v, err := s.Read(b); err != nil || v != 0 {
		t.Fatalf("Read(b) = %v, %v; want 0, nil", v, err)
	}

	// The flag closes the loop a -> b -> a.
	err := s.Write(flag, true)
	if err == nil {
		t.Fatal("expected the propagation pass to surface the cycle")
	}
	if _, rerr := s.Read(a); rerr == nil {
		t.Error("expected reading the cyclic cell to fail")
	}
}

func TestCustomEquality(t *testing.T) {
	s := NewStore()
	// Case-insensitive equality: rewrites that only change case are
	// no-ops.
	h, _ := s.Source("go", WithEquals(func(a, b any) bool {
		return strings.EqualFold(a.(string), b.(string))
	}))

	computes := 0
	d, _ := s.Derive(func() (any, error) {
		computes++
		return s.Read(h)
	})
	if v, _ := s.Read(d); v != "go" {
		t.Fatalf("expected go, got %v", v)
	}

	s.Write(h, "GO")
	s.Read(d)
	if computes != 1 {
		t.Errorf("case-equal write should be a no-op, got %d computes", computes)
	}

	s.Write(h, "rust")
	if v, _ := s.Read(d); v != "rust" {
		t.Errorf("expected rust, got %v", v)
	}
	if computes != 2 {
		t.Errorf("expected 2 computes, got %d", computes)
	}
}

func TestWriteInsideComputeRejected(t *testing.T) {
	s := NewStore()
	a, _ := s.Source(1)
	other, _ := s.Source(0)

	var writeErr error
	d, _ := s.Derive(func() (any, error) {
		v, err := s.Read(a)
		if err != nil {
			return nil, err
		}
		writeErr = s.Write(other, 99)
		if writeErr != nil {
			return nil, writeErr
		}
		return v, nil
	})

	if _, err := s.Read(d); err == nil {
		t.Fatal("expected the computation to fail")
	}
	if !errors.Is(writeErr, ErrInvalidMutation) {
		t.Errorf("expected ErrInvalidMutation inside compute, got %v", writeErr)
	}
	if v, _ := s.Read(other); v != 0 {
		t.Errorf("rejected write must not land, got %v", v)
	}
}

func TestDerivedOfDerived(t *testing.T) {
	s := NewStore()
	base, _ := s.Source(1)
	plus1, _ := s.Derive(func() (any, error) {
		v, err := s.Read(base)
		if err != nil {
			return nil, err
		}
		return v.(int) + 1, nil
	})
	times10, _ := s.Derive(func() (any, error) {
		v, err := s.Read(plus1)
		if err != nil {
			return nil, err
		}
		return v.(int) * 10, nil
	})

	if v, _ := s.Read(times10); v != 20 {
		t.Errorf("expected 20, got %v", v)
	}
	s.Write(base, 4)
	if v, _ := s.Read(times10); v != 50 {
		t.Errorf("expected 50, got %v", v)
	}
}
