package reclamation

import (
	"sync/atomic"
	"testing"

	"github.com/hollow-tm/reclaim/allocator"
)

func TestCountingSafeDeleteWithNoProtectorDestroysImmediately(t *testing.T) {
	var destroyed int
	s := NewCounting[int](RawDelete[int](func(p *int) { destroyed++ }, nil), nil)
	h := s.GetHandle()
	p := h.CreatePointer(func() int { return 1 })
	h.SafeDelete(p)
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", destroyed)
	}
}

func TestCountingSafeDeleteDefersUntilLastUnprotect(t *testing.T) {
	var destroyed int
	s := NewCounting[int](RawDelete[int](func(p *int) { destroyed++ }, nil), nil)
	h := s.GetHandle()

	var cell atomic.Pointer[int]
	p := h.CreatePointer(func() int { return 7 })
	cell.Store(p)

	a := h.Protect(&cell)
	b := h.Protect(&cell)

	h.SafeDelete(p)
	if destroyed != 0 {
		t.Fatalf("destroyed = %d while still protected, want 0", destroyed)
	}

	h.Unprotect(a)
	if destroyed != 0 {
		t.Fatalf("destroyed = %d after first unprotect, want 0", destroyed)
	}

	h.Unprotect(b)
	if destroyed != 1 {
		t.Fatalf("destroyed = %d after last unprotect, want 1", destroyed)
	}
}

func TestCountingRecyclesDestroyedNode(t *testing.T) {
	s := NewCounting[int](nil, nil)
	h := s.GetHandle()

	first := h.CreatePointer(func() int { return 11 })
	h.SafeDelete(first)

	second := h.CreatePointer(func() int { return 22 })
	if second != first {
		t.Fatalf("expected recycled node address %p, got %p", first, second)
	}
	if *second != 22 {
		t.Fatalf("recycled node value = %d, want 22", *second)
	}
}

func TestCountingUsesInjectedAllocatorOnCacheMiss(t *testing.T) {
	arena := allocator.NewArena[CountingNode[int]](4)
	s := NewCounting[int](nil, arena)
	h := s.GetHandle()

	first := h.CreatePointer(func() int { return 1 })
	if arena.NetAllocations() != 1 {
		t.Fatalf("NetAllocations after first create = %d, want 1", arena.NetAllocations())
	}

	h.SafeDelete(first)
	second := h.CreatePointer(func() int { return 2 })
	if second != first {
		t.Fatalf("expected the recycled node, got a different address")
	}
	if arena.NetAllocations() != 1 {
		t.Fatalf("NetAllocations after recycle = %d, want 1 (no new Alloc call)", arena.NetAllocations())
	}
}

func TestCountingProtectFollowsCellAfterStore(t *testing.T) {
	s := NewCounting[int](nil, nil)
	h := s.GetHandle()

	var cell atomic.Pointer[int]
	cell.Store(h.CreatePointer(func() int { return 1 }))

	got := h.Protect(&cell)
	if *got != 1 {
		t.Fatalf("Protect returned %d, want 1", *got)
	}
	h.Unprotect(got)

	next := h.CreatePointer(func() int { return 2 })
	cell.Store(next)
	got2 := h.Protect(&cell)
	if *got2 != 2 {
		t.Fatalf("Protect after swap returned %d, want 2", *got2)
	}
	h.Unprotect(got2)
}

func TestCountingIsSafe(t *testing.T) {
	s := NewCounting[int](nil, nil)
	h := s.GetHandle()
	var cell atomic.Pointer[int]
	p := h.CreatePointer(func() int { return 1 })
	cell.Store(p)

	if !h.IsSafe(p) {
		t.Fatalf("node should be safe before any protection")
	}
	got := h.Protect(&cell)
	if h.IsSafe(got) {
		t.Fatalf("node should not be safe while protected")
	}
	h.Unprotect(got)
	if !h.IsSafe(got) {
		t.Fatalf("node should be safe again once unprotected")
	}
}
