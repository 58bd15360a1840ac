package reactive

import "testing"

type counterAction struct {
	op string
	n  int
}

func counterReduce(state int, a counterAction) int {
	switch a.op {
	case "add":
		return state + a.n
	case "reset":
		return 0
	default:
		return state
	}
}

func TestReducerDispatch(t *testing.T) {
	s := NewStore()
	r := NewReducer(s, "counter", 0, counterReduce)

	if err := r.Dispatch(counterAction{op: "add", n: 5}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if err := r.Dispatch(counterAction{op: "add", n: 3}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if v, _ := r.State(); v != 8 {
		t.Errorf("state = %d, want 8", v)
	}

	r.Dispatch(counterAction{op: "reset"})
	if v, _ := r.State(); v != 0 {
		t.Errorf("state = %d after reset, want 0", v)
	}
}

func TestReducerCellParticipatesInGraph(t *testing.T) {
	s := NewStore()
	r := NewReducer(s, "counter", 1, counterReduce)

	doubled := NewDerived(s, func() (int, error) {
		v, err := r.Cell().Get()
		if err != nil {
			return 0, err
		}
		return v * 2, nil
	})
	if v, _ := doubled.Get(); v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}

	var seen []int
	sub, _ := Observe(s, doubled.Handle(), func(prev, next int) {
		seen = append(seen, next)
	})
	defer sub.Dispose()

	r.Dispatch(counterAction{op: "add", n: 4})
	if v, _ := doubled.Get(); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
	if len(seen) != 1 || seen[0] != 10 {
		t.Errorf("observer saw %v, want [10]", seen)
	}
}

func TestReducerNoOpActionDoesNotNotify(t *testing.T) {
	s := NewStore()
	r := NewReducer(s, "counter", 5, counterReduce)

	notified := 0
	sub, _ := s.Subscribe(r.Cell().Handle(), func(prev, next any) { notified++ })
	defer sub.Dispose()

	r.Dispatch(counterAction{op: "add", n: 0})
	if notified != 0 {
		t.Errorf("identity action should not notify, got %d", notified)
	}
}
