package retireq

import "testing"

func TestRingPushPopBackOrder(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 10; i++ {
		r.PushBack(i)
	}
	if r.Size() != 10 {
		t.Fatalf("size = %d, want 10", r.Size())
	}
	for i := 9; i >= 0; i-- {
		v, ok := r.PopBack()
		if !ok || v != i {
			t.Fatalf("PopBack = %d,%v want %d,true", v, ok, i)
		}
	}
	if !r.Empty() {
		t.Fatalf("ring should be empty")
	}
}

func TestRingPushFrontPopFront(t *testing.T) {
	r := NewRing[int](2)
	for i := 0; i < 5; i++ {
		r.PushFront(i)
	}
	// front pushes reverse order: last pushed is frontmost
	want := []int{4, 3, 2, 1, 0}
	for _, w := range want {
		v, ok := r.PopFront()
		if !ok || v != w {
			t.Fatalf("PopFront = %d,%v want %d,true", v, ok, w)
		}
	}
}

func TestRingGrowPreservesOrder(t *testing.T) {
	r := NewRing[int](1)
	for i := 0; i < 100; i++ {
		r.PushBack(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := r.PopFront()
		if !ok || v != i {
			t.Fatalf("PopFront(%d) = %d,%v", i, v, ok)
		}
	}
}

func TestRingPopEmpty(t *testing.T) {
	r := NewRing[int](4)
	if _, ok := r.PopBack(); ok {
		t.Fatalf("PopBack on empty ring should fail")
	}
	if _, ok := r.PopFront(); ok {
		t.Fatalf("PopFront on empty ring should fail")
	}
}

func TestRingAt(t *testing.T) {
	r := NewRing[int](4)
	r.PushBack(1)
	r.PushBack(2)
	r.PushBack(3)
	if r.At(0) != 1 || r.At(1) != 2 || r.At(2) != 3 {
		t.Fatalf("At returned wrong values")
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing[int](4)
	r.PushBack(1)
	r.PushBack(2)
	r.Clear()
	if !r.Empty() {
		t.Fatalf("ring should be empty after Clear")
	}
	r.PushBack(3)
	v, ok := r.PopFront()
	if !ok || v != 3 {
		t.Fatalf("ring usable after Clear, got %d,%v", v, ok)
	}
}
