package reclamation

import (
	"fmt"
	"sync/atomic"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/hollow-tm/reclaim/tagged"
)

// Delayed defers every retirement to handle shutdown: a handle collects
// retired pointers in a local free list and destroys them all when the
// handle is released, trading worst-case memory growth for zero per-
// operation bookkeeping. Adapted from the source's delayed_manager.
type Delayed[T any] struct {
	destructor Destructor[T]
}

// NewDelayed returns a Delayed strategy using destructor to reclaim
// retired nodes at handle release time.
func NewDelayed[T any](destructor Destructor[T]) *Delayed[T] {
	if destructor == nil {
		destructor = RawDelete[T](nil, nil)
	}
	return &Delayed[T]{destructor: destructor}
}

// GetHandle returns a fresh handle with an empty local free list.
func (s *Delayed[T]) GetHandle() *DelayedHandle[T] {
	return &DelayedHandle[T]{s: s, freeList: arraylist.New()}
}

// DelayedHandle is Delayed's handle type. It owns a local free list backed
// by gods/arraylist, an amortized-growth array list mirroring the source's
// std::vector<pointer_type> _freelist.
type DelayedHandle[T any] struct {
	_        noCopy
	s        *Delayed[T]
	freeList *arraylist.List
}

// CreatePointer allocates a new node via ctor.
func (h *DelayedHandle[T]) CreatePointer(ctor func() T) *T {
	v := ctor()
	return &v
}

// Protect loads cell. Delayed performs no tag clearing of its own.
func (h *DelayedHandle[T]) Protect(cell *atomic.Pointer[T]) *T {
	return cell.Load()
}

// ProtectRaw is a no-op: Delayed tracks no per-pointer protections.
func (h *DelayedHandle[T]) ProtectRaw(p *T) {}

// Unprotect is a no-op.
func (h *DelayedHandle[T]) Unprotect(p *T) {}

// UnprotectAll is a no-op.
func (h *DelayedHandle[T]) UnprotectAll(ps []*T) {}

// SafeDelete appends p to this handle's local free list; it is not
// destroyed until Release is called.
func (h *DelayedHandle[T]) SafeDelete(p *T) {
	if p == nil {
		return
	}
	h.freeList.Add(tagged.Clear(p))
}

// DeleteRaw destroys p immediately, bypassing the free list.
func (h *DelayedHandle[T]) DeleteRaw(p *T) {
	if p == nil {
		return
	}
	h.s.destructor.Destroy(tagged.Clear(p))
}

// IsSafe always reports false: Delayed tracks no protections to check
// against.
func (h *DelayedHandle[T]) IsSafe(p *T) bool { return false }

// Guard protects cell and returns a scoped Guard.
func (h *DelayedHandle[T]) Guard(cell *atomic.Pointer[T]) *Guard[T] {
	return newGuard[T](h, h.Protect(cell))
}

// GuardRaw wraps p in a scoped Guard without any bookkeeping.
func (h *DelayedHandle[T]) GuardRaw(p *T) *Guard[T] {
	h.ProtectRaw(p)
	return newGuard[T](h, p)
}

// Release drains the local free list, destroying every retired node
// through the strategy's destructor. Must be called exactly once, when the
// owning goroutine is done with the handle; the hazard manager's shutdown
// barrier has no Delayed analogue, since nothing else ever waits on this
// handle's free list draining.
func (h *DelayedHandle[T]) Release() {
	for !h.freeList.Empty() {
		last := h.freeList.Size() - 1
		v, _ := h.freeList.Get(last)
		h.freeList.Remove(last)
		h.s.destructor.Destroy(v.(*T))
	}
}

// DebugString reports how many retirements are pending destruction.
func (h *DelayedHandle[T]) DebugString() string {
	return fmt.Sprintf("DelayedHandle{pending=%d}", h.freeList.Size())
}

var _ Handle[int] = (*DelayedHandle[int])(nil)
