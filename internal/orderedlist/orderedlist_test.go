package orderedlist

import (
	"slices"
	"testing"
)

func TestMoveUp_SwapsWithPrevious(t *testing.T) {
	in := []string{"a", "b", "c"}
	got, ok := MoveUp(in, 2)
	if !ok {
		t.Fatalf("expected move")
	}
	if want := []string{"a", "c", "b"}; !slices.Equal(got, want) {
		t.Fatalf("expected %v; got %v", want, got)
	}
	if !slices.Equal(in, []string{"a", "b", "c"}) {
		t.Fatalf("expected input untouched; got %v", in)
	}
}

func TestMoveUp_FirstAndOutOfRangeAreNoOps(t *testing.T) {
	in := []string{"a", "b"}
	for _, i := range []int{0, -1, 2, 99} {
		got, ok := MoveUp(in, i)
		if ok {
			t.Fatalf("index %d: expected no-op", i)
		}
		if !slices.Equal(got, in) {
			t.Fatalf("index %d: expected unchanged; got %v", i, got)
		}
	}
}

func TestMoveDown_SwapsWithNext(t *testing.T) {
	got, ok := MoveDown([]string{"Buy milk", "Walk dog"}, 0)
	if !ok {
		t.Fatalf("expected move")
	}
	if want := []string{"Walk dog", "Buy milk"}; !slices.Equal(got, want) {
		t.Fatalf("expected %v; got %v", want, got)
	}
}

func TestMoveDown_LastAndOutOfRangeAreNoOps(t *testing.T) {
	in := []string{"a", "b"}
	for _, i := range []int{1, -1, 2} {
		if _, ok := MoveDown(in, i); ok {
			t.Fatalf("index %d: expected no-op", i)
		}
	}
	if _, ok := MoveDown([]string{}, 0); ok {
		t.Fatalf("expected no-op on empty list")
	}
}

func TestDelete_RemovesOnlyTheIndex(t *testing.T) {
	got, ok := Delete([]string{"Buy milk", "Walk dog", "Call bank"}, 1)
	if !ok {
		t.Fatalf("expected delete")
	}
	if want := []string{"Buy milk", "Call bank"}; !slices.Equal(got, want) {
		t.Fatalf("expected %v; got %v", want, got)
	}
}

func TestDelete_OutOfRangeIsRejected(t *testing.T) {
	in := []string{"a"}
	for _, i := range []int{-1, 1, 5} {
		got, ok := Delete(in, i)
		if ok || !slices.Equal(got, in) {
			t.Fatalf("index %d: expected rejected no-op; got %v ok=%v", i, got, ok)
		}
	}
}

func TestMoveUpThenDown_RoundTrips(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	for i := 1; i < len(in); i++ {
		up, _ := MoveUp(in, i)
		back, _ := MoveDown(up, i-1)
		if !slices.Equal(back, in) {
			t.Fatalf("index %d: expected round trip to %v; got %v", i, in, back)
		}
	}
	for i := 0; i < len(in)-1; i++ {
		down, _ := MoveDown(in, i)
		back, _ := MoveUp(down, i+1)
		if !slices.Equal(back, in) {
			t.Fatalf("index %d: expected round trip to %v; got %v", i, in, back)
		}
	}
}

func TestDelete_EveryIndexKeepsRelativeOrder(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	for i := range in {
		got, _ := Delete(in, i)
		if len(got) != len(in)-1 {
			t.Fatalf("index %d: expected len %d; got %d", i, len(in)-1, len(got))
		}
		want := append(append([]string{}, in[:i]...), in[i+1:]...)
		if !slices.Equal(got, want) {
			t.Fatalf("index %d: expected %v; got %v", i, want, got)
		}
	}
}

func TestMove_ClampsTarget(t *testing.T) {
	in := []string{"a", "b", "c", "d"}

	got, ok := Move(in, 0, 2)
	if !ok || !slices.Equal(got, []string{"b", "c", "a", "d"}) {
		t.Fatalf("expected a moved to index 2; got %v", got)
	}
	got, ok = Move(in, 3, -5)
	if !ok || !slices.Equal(got, []string{"d", "a", "b", "c"}) {
		t.Fatalf("expected d moved to front; got %v", got)
	}
	got, ok = Move(in, 1, 99)
	if !ok || !slices.Equal(got, []string{"a", "c", "d", "b"}) {
		t.Fatalf("expected b moved to end; got %v", got)
	}
	if _, ok := Move(in, 2, 2); ok {
		t.Fatalf("expected same-position move to be a no-op")
	}
	if _, ok := Move(in, 4, 0); ok {
		t.Fatalf("expected out-of-range source to be a no-op")
	}
}

func TestManager_CallbackOnlyOnChange(t *testing.T) {
	var calls [][]string
	m := NewManager(func(next []string) { calls = append(calls, next) })

	items := []string{"Home", "Work"}
	if m.MoveUp(items, 0) {
		t.Fatalf("expected MoveUp(0) to report no change")
	}
	if m.MoveDown(items, 1) {
		t.Fatalf("expected MoveDown(last) to report no change")
	}
	if m.Delete(items, 7) {
		t.Fatalf("expected out-of-range delete to report no change")
	}
	if len(calls) != 0 {
		t.Fatalf("expected no callbacks; got %v", calls)
	}

	if !m.MoveDown(items, 0) {
		t.Fatalf("expected MoveDown(0) to change")
	}
	if !m.Append(items, "Errands") {
		t.Fatalf("expected append to change")
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 callbacks; got %d", len(calls))
	}
	if !slices.Equal(calls[0], []string{"Work", "Home"}) {
		t.Fatalf("unexpected first callback: %v", calls[0])
	}
	if !slices.Equal(calls[1], []string{"Home", "Work", "Errands"}) {
		t.Fatalf("unexpected second callback: %v", calls[1])
	}
}
