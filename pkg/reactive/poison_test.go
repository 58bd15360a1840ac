package reactive

import (
	"errors"
	"fmt"
	"testing"
)

func TestComputeFailurePoisons(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(1)

	boom := errors.New("boom")
	d, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		if v.(int) < 0 {
			return nil, boom
		}
		return v.(int) * 2, nil
	}, WithName("doubler"))

	if v, _ := s.Read(d); v != 2 {
		t.Fatalf("expected 2, got %v", v)
	}

	// The failing propagation surfaces the computation failure to the
	// writer.
	err := s.Write(h, -1)
	if !errors.Is(err, ErrComputationFailure) {
		t.Fatalf("expected ErrComputationFailure from the write, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("failure should wrap the compute error, got %v", err)
	}

	// Subsequent reads classify as poisoned, still wrapping the cause.
	_, err = s.Read(d)
	if !errors.Is(err, ErrPoisoned) {
		t.Fatalf("expected ErrPoisoned on re-read, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("poison should chain to the cause, got %v", err)
	}

	var cerr *CellError
	if !errors.As(err, &cerr) {
		t.Fatal("expected a *CellError")
	}
	if cerr.Cell != "doubler" {
		t.Errorf("error names cell %q, want doubler", cerr.Cell)
	}
}

func TestPoisonRecovery(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(1)

	d, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		if v.(int) < 0 {
			return nil, fmt.Errorf("negative input %d", v)
		}
		return v.(int) + 100, nil
	})
	if v, _ := s.Read(d); v != 101 {
		t.Fatalf("expected 101, got %v", v)
	}

	if err := s.Write(h, -5); err == nil {
		t.Fatal("expected the write to surface the failure")
	}
	if _, err := s.Read(d); !errors.Is(err, ErrPoisoned) {
		t.Fatalf("expected ErrPoisoned, got %v", err)
	}

	// A fresh input retries the computation and clears the poison.
	if err := s.Write(h, 7); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	v, err := s.Read(d)
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if v != 107 {
		t.Errorf("expected 107, got %v", v)
	}
}

func TestPoisonIsolatesBranches(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(2)

	fragile, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		if v.(int) == 3 {
			return nil, errors.New("cannot handle three")
		}
		return v.(int) * 10, nil
	})
	sturdy, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		return v.(int) + 1, nil
	})
	if v, _ := s.Read(fragile); v != 20 {
		t.Fatalf("expected 20, got %v", v)
	}
	if v, _ := s.Read(sturdy); v != 3 {
		t.Fatalf("expected 3, got %v", v)
	}

	sturdySeen := 0
	sub, _ := s.Subscribe(sturdy, func(prev, next any) { sturdySeen++ })
	defer sub.Dispose()

	// The write fails one branch; the independent branch still settles
	// and notifies.
	err := s.Write(h, 3)
	if !errors.Is(err, ErrComputationFailure) {
		t.Fatalf("expected ErrComputationFailure, got %v", err)
	}
	if v, rerr := s.Read(sturdy); rerr != nil || v != 4 {
		t.Errorf("independent branch = %v, %v; want 4, nil", v, rerr)
	}
	if sturdySeen != 1 {
		t.Errorf("independent branch notifications = %d, want 1", sturdySeen)
	}
	if _, rerr := s.Read(fragile); !errors.Is(rerr, ErrPoisoned) {
		t.Errorf("expected the failed branch poisoned, got %v", rerr)
	}
}

func TestPoisonSkipsDownstream(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(1)

	failing, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		if v.(int) > 0 {
			return nil, errors.New("positive not allowed")
		}
		return v, nil
	})

	downstreamRuns := 0
	downstream, _ := s.Derive(func() (any, error) {
		downstreamRuns++
		return s.Read(failing)
	})

	_, err := s.Read(downstream)
	if !errors.Is(err, ErrComputationFailure) && !errors.Is(err, ErrPoisoned) {
		t.Fatalf("expected a failure reading downstream, got %v", err)
	}
	runsAfterFirst := downstreamRuns

	// Re-reading downstream must not re-run its compute while the
	// upstream poison stands.
	if _, err := s.Read(downstream); !errors.Is(err, ErrPoisoned) {
		t.Errorf("expected ErrPoisoned, got %v", err)
	}
	if downstreamRuns != runsAfterFirst {
		t.Errorf("downstream recomputed under a standing poison: %d runs", downstreamRuns)
	}

	// Upstream recovery reaches through.
	if err := s.Write(h, -1); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if v, err := s.Read(downstream); err != nil || v != -1 {
		t.Errorf("Read(downstream) = %v, %v; want -1, nil", v, err)
	}
}

func TestMustGetChainsFailure(t *testing.T) {
	s := NewStore()
	src := NewCell(s, "src", 5)

	boom := errors.New("boom")
	upstream := NewDerived(s, func() (int, error) {
		v := src.MustGet()
		if v > 3 {
			return 0, boom
		}
		return v, nil
	})
	// Reading through MustGet inside another compute converts the
	// upstream failure into this cell's poison without double wrapping
	// the classification.
	downstream := NewDerived(s, func() (int, error) {
		return upstream.MustGet() + 1, nil
	})

	_, err := downstream.Get()
	if err == nil {
		t.Fatal("expected a failure")
	}
	if !errors.Is(err, boom) {
		t.Errorf("failure should chain to the root cause, got %v", err)
	}

	src.Set(1)
	if v, err := downstream.Get(); err != nil || v != 2 {
		t.Errorf("after recovery got %v, %v; want 2, nil", v, err)
	}
}

func TestLastGoodValueRetained(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(4)
	d, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		if v.(int) == 0 {
			return nil, errors.New("zero")
		}
		return v.(int) * 2, nil
	}, WithName("d"))
	if v, _ := s.Read(d); v != 8 {
		t.Fatalf("expected 8, got %v", v)
	}

	s.Write(h, 0)

	// Reads fail, but the snapshot still shows the last good value for
	// inspection.
	for _, info := range s.Snapshot() {
		if info.Name == "d" {
			if info.State != "poisoned" {
				t.Errorf("state = %s, want poisoned", info.State)
			}
			if info.Value != 8 {
				t.Errorf("last good value = %v, want 8", info.Value)
			}
		}
	}
}

func TestPoisonedCellDoesNotNotify(t *testing.T) {
	s := NewStore()
	h, _ := s.Source(1)
	d, _ := s.Derive(func() (any, error) {
		v, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		if v.(int) < 0 {
			return nil, errors.New("negative")
		}
		return v, nil
	})
	if _, err := s.Read(d); err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	notified := 0
	sub, _ := s.Subscribe(d, func(prev, next any) { notified++ })
	defer sub.Dispose()

	s.Write(h, -1)
	if notified != 0 {
		t.Errorf("a failing pass must not notify the failed cell, got %d", notified)
	}

	s.Write(h, 2)
	if notified != 1 {
		t.Errorf("recovery with a changed value notifies once, got %d", notified)
	}
}
