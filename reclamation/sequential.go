package reclamation

import (
	"sync/atomic"

	"github.com/hollow-tm/reclaim/tagged"
)

// Sequential is the baseline reclamation strategy: it performs no
// bookkeeping at all and assumes the caller already guarantees no other
// goroutine can observe a pointer before it is retired (a single-threaded
// benchmark harness, or a structure already protected by an external
// lock). Adapted from the source's sequential_manager.
type Sequential[T any] struct {
	destructor Destructor[T]
}

// NewSequential returns a Sequential strategy using destructor to reclaim
// retired nodes. destructor may be nil, in which case RawDelete(nil, nil)
// is used.
func NewSequential[T any](destructor Destructor[T]) *Sequential[T] {
	if destructor == nil {
		destructor = RawDelete[T](nil, nil)
	}
	return &Sequential[T]{destructor: destructor}
}

// GetHandle returns a handle. Sequential handles carry no state of their
// own, so any number may be created cheaply; they still must not be shared
// across goroutines, per the common handle contract.
func (s *Sequential[T]) GetHandle() *SequentialHandle[T] {
	return &SequentialHandle[T]{s: s}
}

// SequentialHandle is Sequential's handle type.
type SequentialHandle[T any] struct {
	_ noCopy
	s *Sequential[T]
}

// CreatePointer allocates a new node via ctor.
func (h *SequentialHandle[T]) CreatePointer(ctor func() T) *T {
	v := ctor()
	return &v
}

// Protect loads cell and clears any tag bits: as in Counting, but unlike
// Delayed and Hazard, Sequential's protect step is also where a
// lingering flag bit from a previous owner gets stripped, since no
// concurrent writer can be racing the load.
func (h *SequentialHandle[T]) Protect(cell *atomic.Pointer[T]) *T {
	return tagged.Clear(cell.Load())
}

// ProtectRaw is a no-op: Sequential performs no bookkeeping.
func (h *SequentialHandle[T]) ProtectRaw(p *T) {}

// Unprotect is a no-op.
func (h *SequentialHandle[T]) Unprotect(p *T) {}

// UnprotectAll is a no-op.
func (h *SequentialHandle[T]) UnprotectAll(ps []*T) {}

// SafeDelete destroys p immediately via the configured destructor. Safe
// only under Sequential's single-writer assumption.
func (h *SequentialHandle[T]) SafeDelete(p *T) {
	if p == nil {
		return
	}
	h.s.destructor.Destroy(tagged.Clear(p))
}

// DeleteRaw is identical to SafeDelete for this strategy: there is no
// protection bookkeeping to bypass.
func (h *SequentialHandle[T]) DeleteRaw(p *T) {
	h.SafeDelete(p)
}

// IsSafe always reports false: Sequential tracks no protections to check
// against.
func (h *SequentialHandle[T]) IsSafe(p *T) bool { return false }

// Guard protects cell and returns a scoped Guard.
func (h *SequentialHandle[T]) Guard(cell *atomic.Pointer[T]) *Guard[T] {
	return newGuard[T](h, h.Protect(cell))
}

// GuardRaw wraps p in a scoped Guard without any bookkeeping.
func (h *SequentialHandle[T]) GuardRaw(p *T) *Guard[T] {
	h.ProtectRaw(p)
	return newGuard[T](h, p)
}

// DebugString reports that this handle carries no state.
func (h *SequentialHandle[T]) DebugString() string {
	return "SequentialHandle{stateless}"
}

var _ Handle[int] = (*SequentialHandle[int])(nil)
