package tagged

import "testing"

type node struct {
	value int
}

func TestMarkClearRoundTrip(t *testing.T) {
	n := &node{value: 7}
	tp := Mark(n, ReservedBit)
	if tp == n {
		t.Fatalf("Mark did not change pointer bits")
	}
	if !GetMark(tp, ReservedBit) {
		t.Fatalf("GetMark should report true after Mark")
	}
	cp := Clear(tp)
	if cp != n {
		t.Fatalf("Clear(Mark(n)) = %p, want %p", cp, n)
	}
	if cp.value != 7 {
		t.Fatalf("cleared pointer does not reach original data: got %d", cp.value)
	}
}

func TestUnmark(t *testing.T) {
	n := &node{value: 1}
	tp := Mark(n, ReservedBit)
	up := Unmark(tp, ReservedBit)
	if GetMark(up, ReservedBit) {
		t.Fatalf("Unmark did not clear the flag bit")
	}
	if Clear(up) != n {
		t.Fatalf("Unmark should preserve the address")
	}
}

func TestMultipleFlagBitsIndependent(t *testing.T) {
	n := &node{value: 2}
	tp := Mark(n, 0)
	tp = Mark(tp, 1)
	if !GetMark(tp, 0) || !GetMark(tp, 1) {
		t.Fatalf("expected both bits set")
	}
	tp = Unmark(tp, 0)
	if GetMark(tp, 0) {
		t.Fatalf("bit 0 should be cleared")
	}
	if !GetMark(tp, 1) {
		t.Fatalf("bit 1 should remain set")
	}
	if Clear(tp) != n {
		t.Fatalf("address should survive independent flag manipulation")
	}
}

func TestGetMarkOnUnmarkedPointer(t *testing.T) {
	n := &node{value: 3}
	if GetMark(n, ReservedBit) {
		t.Fatalf("unmarked pointer should report no flag set")
	}
}
