package reclamation

import (
	"sync/atomic"
	"testing"
)

func TestDelayedDefersUntilRelease(t *testing.T) {
	var destroyed int
	s := NewDelayed[int](RawDelete[int](func(p *int) { destroyed++ }, nil))
	h := s.GetHandle()

	var cell atomic.Pointer[int]
	p := h.CreatePointer(func() int { return 5 })
	cell.Store(p)
	got := h.Protect(&cell)

	h.SafeDelete(got)
	if destroyed != 0 {
		t.Fatalf("destroyed = %d before Release, want 0", destroyed)
	}

	h.Release()
	if destroyed != 1 {
		t.Fatalf("destroyed = %d after Release, want 1", destroyed)
	}
}

func TestDelayedReleaseDrainsMultiple(t *testing.T) {
	var destroyed int
	s := NewDelayed[int](RawDelete[int](func(p *int) { destroyed++ }, nil))
	h := s.GetHandle()

	for i := 0; i < 10; i++ {
		p := h.CreatePointer(func() int { return i })
		h.SafeDelete(p)
	}
	h.Release()
	if destroyed != 10 {
		t.Fatalf("destroyed = %d, want 10", destroyed)
	}
}

func TestDelayedDeleteRawBypassesFreeList(t *testing.T) {
	var destroyed int
	s := NewDelayed[int](RawDelete[int](func(p *int) { destroyed++ }, nil))
	h := s.GetHandle()
	p := h.CreatePointer(func() int { return 1 })
	h.DeleteRaw(p)
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
	h.Release()
	if destroyed != 1 {
		t.Fatalf("Release should not double-destroy a DeleteRaw'd node, got %d", destroyed)
	}
}
