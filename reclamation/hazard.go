package reclamation

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hollow-tm/reclaim/allocator"
	"github.com/hollow-tm/reclaim/diagnostics"
	"github.com/hollow-tm/reclaim/tagged"
)

// ErrHandlesExhausted is returned by Hazard.GetHandle when every slot in
// the handle registry is already claimed by a live handle. The source
// instead hands back a handle with a sentinel id of -666 and logs to its
// output channel; a recoverable error is more useful to production
// callers than a sentinel value they might forget to check for.
var ErrHandlesExhausted = errors.New("reclamation: hazard handle registry exhausted")

// internalHandle is the per-handle protection-record state, shared between
// a HazardHandle and the registry slot it occupies so a returned handle
// can be reused by a later GetHandle call without reallocating its slot
// array.
type internalHandle[T any] struct {
	counter atomic.Int32
	slots   []atomic.Pointer[T]
}

func newInternalHandle[T any](maxProtections int) *internalHandle[T] {
	return &internalHandle[T]{slots: make([]atomic.Pointer[T], maxProtections)}
}

// HazardConfig configures a Hazard strategy's fixed-size resources, the Go
// equivalent of the source's maxThreads/maxProtections template
// parameters.
type HazardConfig struct {
	MaxThreads     int
	MaxProtections int
}

// DefaultHazardConfig mirrors the source's template defaults of 64 and 64.
func DefaultHazardConfig() HazardConfig {
	return HazardConfig{MaxThreads: 64, MaxProtections: 64}
}

// Hazard is the hazard-pointer reclamation strategy: each handle publishes,
// in a small per-handle slot array, every pointer it currently holds live;
// a handle retiring a node scans every other handle's slots before
// destroying it, and transfers the obligation to whichever handle is still
// looking at it if one is found. Adapted from the source's hazard_manager.
type Hazard[T any] struct {
	config        HazardConfig
	destructor    Destructor[T]
	alloc         allocator.Allocator[T]
	handleCounter atomic.Int64
	handles       []atomic.Pointer[internalHandle[T]]
}

// NewHazard returns a Hazard strategy sized per config, reclaiming retired
// nodes through destructor and obtaining node storage from alloc. alloc may
// be nil, defaulting to a plain Heap allocator. If destructor is also nil,
// the default destructor releases back to the same alloc CreatePointer
// allocates from, so the pair stays balanced.
func NewHazard[T any](config HazardConfig, destructor Destructor[T], alloc allocator.Allocator[T]) *Hazard[T] {
	if config.MaxThreads <= 0 {
		config.MaxThreads = DefaultHazardConfig().MaxThreads
	}
	if config.MaxProtections <= 0 {
		config.MaxProtections = DefaultHazardConfig().MaxProtections
	}
	if alloc == nil {
		alloc = allocator.NewHeap[T]()
	}
	if destructor == nil {
		destructor = RawDelete[T](nil, alloc)
	}
	s := &Hazard[T]{config: config, destructor: destructor, alloc: alloc}
	s.handleCounter.Store(-1)
	s.handles = make([]atomic.Pointer[internalHandle[T]], config.MaxThreads)
	return s
}

func (s *Hazard[T]) bumpCounter(i int) {
	for {
		b := s.handleCounter.Load()
		if b >= int64(i) {
			return
		}
		if s.handleCounter.CompareAndSwap(b, int64(i)) {
			return
		}
	}
}

// GetHandle claims a free registry slot, either one never used or one
// returned by a prior handle's Release, and returns a handle bound to it.
// It reports ErrHandlesExhausted if every slot is occupied by a live
// handle.
func (s *Hazard[T]) GetHandle() (*HazardHandle[T], error) {
	fresh := newInternalHandle[T](s.config.MaxProtections)
	for i := 0; i < s.config.MaxThreads; i++ {
		cur := s.handles[i].Load()
		if cur == nil {
			if s.handles[i].CompareAndSwap(nil, fresh) {
				s.bumpCounter(i)
				return &HazardHandle[T]{s: s, internal: fresh, id: i}, nil
			}
			cur = s.handles[i].Load()
		}
		if cur != nil && tagged.GetMark(cur, tagged.ReservedBit) {
			cleared := tagged.Clear(cur)
			if s.handles[i].CompareAndSwap(cur, cleared) {
				return &HazardHandle[T]{s: s, internal: cleared, id: i}, nil
			}
		}
	}
	return nil, ErrHandlesExhausted
}

// Close blocks until every handle obtained from this strategy has called
// Release, mirroring the source's destructor shutdown barrier. Intended
// for orderly shutdown in tests and the stress harness.
func (s *Hazard[T]) Close() {
	counter := s.handleCounter.Load()
	for i := counter; i >= 0; i-- {
		for {
			temp := s.handles[i].Load()
			if temp == nil || tagged.GetMark(temp, tagged.ReservedBit) {
				break
			}
		}
	}
}

// DebugString reports how many registry slots have ever been claimed.
func (s *Hazard[T]) DebugString() string {
	return fmt.Sprintf("Hazard{handles=%d}", s.handleCounter.Load()+1)
}

// HazardHandle is Hazard's handle type.
type HazardHandle[T any] struct {
	_        noCopy
	s        *Hazard[T]
	internal *internalHandle[T]
	id       int
}

// CreatePointer obtains a node from the strategy's allocator and
// constructs its value via ctor in place.
func (h *HazardHandle[T]) CreatePointer(ctor func() T) *T {
	p := h.s.alloc.Alloc()
	*p = ctor()
	return p
}

// Protect loads cell into a free protection slot, re-reading cell until the
// stored value stabilizes, so the returned pointer is guaranteed to have
// been published in this handle's slots before any other goroutine could
// have observed it unprotected.
func (h *HazardHandle[T]) Protect(cell *atomic.Pointer[T]) *T {
	pos := int(h.internal.counter.Add(1) - 1)
	diagnostics.Assertf(pos >= len(h.internal.slots), "hazard protection slots exhausted (pos=%d)", pos)
	slot := &h.internal.slots[pos]

	temp0 := cell.Load()
	slot.Store(tagged.Clear(temp0))
	temp1 := cell.Load()
	for temp0 != temp1 {
		prev := slot.Swap(tagged.Clear(temp1))
		if tagged.GetMark(prev, tagged.ReservedBit) {
			h.continueDeletion(tagged.Clear(prev), pos)
		}
		temp0 = temp1
		temp1 = cell.Load()
	}
	return temp0
}

// ProtectRaw extends the same protection to a pointer already in hand.
func (h *HazardHandle[T]) ProtectRaw(p *T) {
	pos := int(h.internal.counter.Add(1) - 1)
	diagnostics.Assertf(pos >= len(h.internal.slots), "hazard protection slots exhausted (pos=%d)", pos)
	h.internal.slots[pos].Store(tagged.Clear(p))
}

// SafeDelete scans every live handle's protection slots for p; if one still
// holds it, responsibility for destroying p is transferred there via a
// marked slot entry. Otherwise p is destroyed immediately.
func (h *HazardHandle[T]) SafeDelete(p *T) {
	if p == nil {
		return
	}
	tptr := tagged.Clear(p)
	for j := h.s.handleCounter.Load(); j >= 0; j-- {
		handle := h.s.handles[j].Load()
		if handle == nil || tagged.GetMark(handle, tagged.ReservedBit) {
			continue
		}
		n := int(handle.counter.Load())
		for i := n - 1; i >= 0; i-- {
			slot := &handle.slots[i]
			temp := slot.Load()
			if temp == tptr {
				if slot.CompareAndSwap(temp, tagged.Mark(tptr, tagged.ReservedBit)) {
					return
				}
			}
		}
	}
	h.s.destructor.Destroy(tptr)
}

// DeleteRaw destroys p immediately, bypassing the protection scan. Not safe
// unless the caller can prove no handle still protects p.
func (h *HazardHandle[T]) DeleteRaw(p *T) {
	if p == nil {
		return
	}
	h.s.destructor.Destroy(tagged.Clear(p))
}

// IsSafe reports whether no live handle still protects p. Unlike the
// source, every handle pointer here is read through an atomic load on both
// branches; the source's un-atomic read on one branch is a bug and is not
// reproduced.
func (h *HazardHandle[T]) IsSafe(p *T) bool {
	if p == nil {
		return true
	}
	tptr := tagged.Clear(p)
	for j := h.s.handleCounter.Load(); j >= 0; j-- {
		handle := h.s.handles[j].Load()
		if handle == nil || tagged.GetMark(handle, tagged.ReservedBit) {
			continue
		}
		n := int(handle.counter.Load())
		for i := n - 1; i >= 0; i-- {
			if handle.slots[i].Load() == tptr {
				return false
			}
		}
	}
	return true
}

// Unprotect releases a single protection, swapping the freed slot with this
// handle's last occupied slot so the occupied range stays contiguous from
// zero.
func (h *HazardHandle[T]) Unprotect(p *T) {
	if p == nil {
		return
	}
	tptr := tagged.Clear(p)
	lastPos := int(h.internal.counter.Load()) - 1
	if lastPos < 0 {
		return
	}
	lastSlot := &h.internal.slots[lastPos]
	lastPtr := tagged.Clear(lastSlot.Load())

	if tptr == lastPtr {
		removed := lastSlot.Swap(nil)
		h.internal.counter.Store(int32(lastPos))
		if tagged.GetMark(removed, tagged.ReservedBit) {
			h.continueDeletion(tptr, lastPos)
		}
		return
	}

	for i := lastPos - 1; i >= 0; i-- {
		slot := &h.internal.slots[i]
		temp := slot.Load()
		if tptr == tagged.Clear(temp) {
			prev := slot.Swap(lastPtr)
			if tagged.GetMark(prev, tagged.ReservedBit) {
				h.continueDeletion(tptr, i)
			}
			removedLast := lastSlot.Swap(nil)
			h.internal.counter.Store(int32(lastPos))
			// protections are released from back to front, so in case of a
			// marked last slot it does not matter which of the remaining
			// slots ends up carrying the mark
			if tagged.GetMark(removedLast, tagged.ReservedBit) {
				slot.Store(removedLast)
			}
			return
		}
	}
}

// UnprotectAll releases every protection in ps.
func (h *HazardHandle[T]) UnprotectAll(ps []*T) {
	for _, p := range ps {
		h.Unprotect(p)
	}
}

// continueDeletion is reached when a protection slot that was marked for
// transfer gets evicted again (by Protect's re-read loop or by Unprotect);
// it looks for another slot, first within this handle below pos, then
// across every earlier-indexed live handle, to hand the obligation to.
// Finding none, it destroys ptr itself.
func (h *HazardHandle[T]) continueDeletion(ptr *T, pos int) {
	for i := pos - 1; i >= 0; i-- {
		temp := h.internal.slots[i].Load()
		if temp == ptr {
			h.internal.slots[i].Store(tagged.Mark(ptr, tagged.ReservedBit))
			return
		}
	}

	for j := h.id - 1; j >= 0; j-- {
		handle := h.s.handles[j].Load()
		if handle == nil || tagged.GetMark(handle, tagged.ReservedBit) {
			continue
		}
		n := int(handle.counter.Load())
		for i := n - 1; i >= 0; i-- {
			slot := &handle.slots[i]
			temp := slot.Load()
			if temp == ptr {
				if slot.CompareAndSwap(temp, tagged.Mark(ptr, tagged.ReservedBit)) {
					return
				}
			}
		}
	}
	h.s.destructor.Destroy(ptr)
}

// Guard protects cell and returns a scoped Guard.
func (h *HazardHandle[T]) Guard(cell *atomic.Pointer[T]) *Guard[T] {
	return newGuard[T](h, h.Protect(cell))
}

// GuardRaw wraps p in a scoped Guard, publishing it into a free slot.
func (h *HazardHandle[T]) GuardRaw(p *T) *Guard[T] {
	h.ProtectRaw(p)
	return newGuard[T](h, p)
}

// Release unprotects everything this handle still holds, finishing any
// deletions that were only deferred because this handle was the last
// protector, then returns the registry slot for reuse. Must be called
// exactly once, when the owning goroutine is done with the handle.
func (h *HazardHandle[T]) Release() {
	for i := int(h.internal.counter.Load()) - 1; i >= 0; i-- {
		temp := h.internal.slots[i].Swap(nil)
		if tagged.GetMark(temp, tagged.ReservedBit) {
			h.continueDeletion(tagged.Clear(temp), i)
		}
	}
	h.internal.counter.Store(0)
	h.s.handles[h.id].Store(tagged.Mark(h.internal, tagged.ReservedBit))
}

// DebugString reports how many protections this handle currently holds.
func (h *HazardHandle[T]) DebugString() string {
	return fmt.Sprintf("HazardHandle{id=%d, protected=%d}", h.id, h.internal.counter.Load())
}

var _ Handle[int] = (*HazardHandle[int])(nil)
