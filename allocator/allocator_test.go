package allocator

import (
	"testing"
	"unsafe"
)

func TestHeapAllocZeroValue(t *testing.T) {
	h := NewHeap[int]()
	p := h.Alloc()
	if *p != 0 {
		t.Fatalf("Heap.Alloc should return a zero value, got %d", *p)
	}
	h.Free(p)
}

func TestArenaAllocWithinBlock(t *testing.T) {
	a := NewArena[int](4)
	ptrs := make([]*int, 4)
	for i := range ptrs {
		ptrs[i] = a.Alloc()
		*ptrs[i] = i
	}
	for i, p := range ptrs {
		if *p != i {
			t.Fatalf("slot %d = %d, want %d", i, *p, i)
		}
	}
	if a.NetAllocations() != 4 {
		t.Fatalf("NetAllocations = %d, want 4", a.NetAllocations())
	}
}

func TestArenaGrowsPastBlock(t *testing.T) {
	a := NewArena[int](2)
	for i := 0; i < 10; i++ {
		a.Alloc()
	}
	if a.NetAllocations() != 10 {
		t.Fatalf("NetAllocations = %d, want 10", a.NetAllocations())
	}
}

func TestArenaFreeUpdatesNetAllocations(t *testing.T) {
	a := NewArena[int](4)
	p := a.Alloc()
	a.Alloc()
	a.Free(p)
	if a.NetAllocations() != 1 {
		t.Fatalf("NetAllocations = %d, want 1", a.NetAllocations())
	}
}

func TestAlignedAllocIsAligned(t *testing.T) {
	a := NewAligned[int64](64)
	for i := 0; i < 20; i++ {
		p := a.Alloc()
		addr := uintptr(unsafe.Pointer(p))
		if addr%64 != 0 {
			t.Fatalf("address %#x is not 64-byte aligned", addr)
		}
		*p = int64(i)
		if *p != int64(i) {
			t.Fatalf("aligned pointer is not usable")
		}
		a.Free(p)
	}
}

func TestAlignedDefaultAlignment(t *testing.T) {
	a := NewAligned[byte](0)
	p := a.Alloc()
	addr := uintptr(unsafe.Pointer(p))
	if addr%defaultAlignment != 0 {
		t.Fatalf("address %#x not aligned to default %d", addr, defaultAlignment)
	}
}
