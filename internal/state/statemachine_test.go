package state

import "testing"

func TestHappyPathTransitions(t *testing.T) {
	cur := StateValidating
	steps := []struct {
		evt  string
		want string
	}{
		{EvtStakeAccepted, StateDebiting},
		{EvtDebitAccepted, StateDrawing},
		{EvtDrawProduced, StateSettling},
		{EvtSettled, StateCompleted},
	}
	for _, s := range steps {
		next, err := NextState(cur, s.evt)
		if err != nil {
			t.Fatalf("transition %s --%s-->: %v", cur, s.evt, err)
		}
		if next != s.want {
			t.Fatalf("transition %s --%s--> got %s, want %s", cur, s.evt, next, s.want)
		}
		cur = next
	}
}

func TestRejectOnlyFromValidatingOrDebiting(t *testing.T) {
	for _, cur := range []string{StateValidating, StateDebiting} {
		next, err := NextState(cur, EvtReject)
		if err != nil || next != StateRejected {
			t.Fatalf("%s --reject--> got (%s, %v)", cur, next, err)
		}
	}
	for _, cur := range []string{StateDrawing, StateSettling, StateCompleted} {
		if _, err := NextState(cur, EvtReject); err == nil {
			t.Fatalf("%s --reject--> expected error", cur)
		}
	}
}

func TestInvalidTransitionKeepsState(t *testing.T) {
	next, err := NextState(StateDrawing, EvtSettled)
	if err == nil {
		t.Fatalf("expected error for drawing --settled-->")
	}
	if next != StateDrawing {
		t.Fatalf("state should be unchanged on invalid transition, got %s", next)
	}
}
