package reclamation

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/btree"
	"github.com/hollow-tm/reclaim/allocator"
	"github.com/hollow-tm/reclaim/diagnostics"
	"github.com/hollow-tm/reclaim/tagged"
)

// markBit is set in a CountingNode's counter once SafeDelete has been
// called on it: the fetch_or(mark_bit)/CAS(mark_bit -> 0) scheme is the
// only counting scheme implemented here. The fetch_sub-reaches-zero scheme
// from counting_reclamation.hpp is not implemented.
const markBit = uint32(1) << 31

// CountingNode wraps a managed value with the counter and recycle epoch
// the Counting strategy needs. value is the first field so a *T obtained
// by callers can be cast back to *CountingNode[T] via unsafe.Pointer.
type CountingNode[T any] struct {
	value   T
	counter uint32
	epoch   uint64
}

func nodeOf[T any](p *T) *CountingNode[T] {
	return (*CountingNode[T])(unsafe.Pointer(p))
}

func fetchOrUint32(addr *uint32, bits uint32) uint32 {
	for {
		old := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, old, old|bits) {
			return old
		}
	}
}

// Counting is the reference-counted reclamation strategy: every protection
// increments a per-node counter and every release decrements it; a node
// retired while still protected is destroyed by whichever Unprotect call
// observes the counter drop back to the mark bit alone. Destroyed nodes are
// recycled through a shared free pool first, so CreatePointer only reaches
// into alloc when the pool is empty, keyed by a monotonic recycle epoch so
// CreatePointer always reuses the oldest-freed node first. Adapted from
// the source's counting_reclamation.hpp, implementing only its newer
// (mark-bit) scheme.
type Counting[T any] struct {
	destructor   Destructor[T]
	alloc        allocator.Allocator[CountingNode[T]]
	epochCounter uint64
	mu           sync.Mutex
	free         *btree.BTreeG[*CountingNode[T]]
}

// NewCounting returns a Counting strategy using destructor to reclaim
// retired nodes before they are recycled and alloc to obtain node storage
// whenever the recycle pool cannot satisfy a CreatePointer call. alloc may
// be nil, defaulting to a plain Heap allocator.
func NewCounting[T any](destructor Destructor[T], alloc allocator.Allocator[CountingNode[T]]) *Counting[T] {
	if destructor == nil {
		destructor = RawDelete[T](nil, nil)
	}
	if alloc == nil {
		alloc = allocator.NewHeap[CountingNode[T]]()
	}
	less := func(a, b *CountingNode[T]) bool { return a.epoch < b.epoch }
	return &Counting[T]{
		destructor: destructor,
		alloc:      alloc,
		free:       btree.NewG[*CountingNode[T]](32, less),
	}
}

func (s *Counting[T]) pushFree(n *CountingNode[T]) {
	s.mu.Lock()
	s.free.ReplaceOrInsert(n)
	s.mu.Unlock()
}

func (s *Counting[T]) popFree() *CountingNode[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.free.DeleteMin()
	if !ok {
		return nil
	}
	return n
}

// GetHandle returns a handle. Counting handles carry no per-handle state;
// all bookkeeping lives on the node itself, so any number may be created.
func (s *Counting[T]) GetHandle() *CountingHandle[T] {
	return &CountingHandle[T]{s: s}
}

// CountingHandle is Counting's handle type.
type CountingHandle[T any] struct {
	_ noCopy
	s *Counting[T]
}

// CreatePointer reuses the oldest recycled node if the free pool is
// non-empty, reconstructing its value in place; otherwise it obtains a
// fresh node from the strategy's allocator. Mirrors the source's
// erase/emplace placement-reconstruction idiom.
func (h *CountingHandle[T]) CreatePointer(ctor func() T) *T {
	n := h.s.popFree()
	if n == nil {
		n = h.s.alloc.Alloc()
	}
	n.value = ctor()
	n.counter = 0
	return &n.value
}

// Protect loads cell, clears tag bits, and increments the node's
// protection counter, then re-reads cell: if it no longer matches what was
// loaded, a concurrent retire may have already destroyed and recycled the
// node out from under this call, so the increment is backed out and the
// whole load/increment/check sequence retried against the new value.
func (h *CountingHandle[T]) Protect(cell *atomic.Pointer[T]) *T {
	for {
		p := cell.Load()
		if p == nil {
			return nil
		}
		p = tagged.Clear(p)
		n := nodeOf(p)
		atomic.AddUint32(&n.counter, 1)
		if tagged.Clear(cell.Load()) == p {
			return p
		}
		newVal := atomic.AddUint32(&n.counter, ^uint32(0))
		if newVal == markBit {
			h.s.finishDelete(n)
		}
	}
}

// ProtectRaw increments p's protection counter directly.
func (h *CountingHandle[T]) ProtectRaw(p *T) {
	if p == nil {
		return
	}
	atomic.AddUint32(&nodeOf(tagged.Clear(p)).counter, 1)
}

// Unprotect decrements p's protection counter. If this drops the counter
// to exactly the mark bit, SafeDelete was called on p while this handle's
// protection was outstanding and this call is the last one able to see
// that: it finishes the deletion.
func (h *CountingHandle[T]) Unprotect(p *T) {
	if p == nil {
		return
	}
	n := nodeOf(tagged.Clear(p))
	newVal := atomic.AddUint32(&n.counter, ^uint32(0))
	if newVal == markBit {
		h.s.finishDelete(n)
	}
}

// UnprotectAll releases every protection in ps.
func (h *CountingHandle[T]) UnprotectAll(ps []*T) {
	for _, p := range ps {
		h.Unprotect(p)
	}
}

// SafeDelete marks p for deletion. If no protection is currently
// outstanding, the deletion finishes immediately; otherwise whichever
// Unprotect call releases the last outstanding protection finishes it.
func (h *CountingHandle[T]) SafeDelete(p *T) {
	if p == nil {
		return
	}
	n := nodeOf(tagged.Clear(p))
	old := fetchOrUint32(&n.counter, markBit)
	if old == 0 {
		h.s.finishDelete(n)
	}
}

// finishDelete runs exactly when the node's counter holds only the mark
// bit: no outstanding protection remains, so the CAS from mark_bit to 0
// cannot race anything but a fresh CreatePointer reuse, which only happens
// after this node is pushed onto the free pool below. The node itself is
// never handed back to alloc: it stays in the free pool for CreatePointer
// to reuse, so alloc only ever sees a net-positive stream of Alloc calls,
// one per node that has never yet been recycled.
func (s *Counting[T]) finishDelete(n *CountingNode[T]) {
	s.destructor.Destroy(&n.value)
	n.epoch = atomic.AddUint64(&s.epochCounter, 1)
	ok := atomic.CompareAndSwapUint32(&n.counter, markBit, 0)
	diagnostics.Assert("counting: finishDelete observed unexpected counter state", !ok)
	s.pushFree(n)
}

// DeleteRaw bypasses the protection counter entirely and finishes the
// deletion immediately. Not safe unless the caller can prove no handle
// still protects p.
func (h *CountingHandle[T]) DeleteRaw(p *T) {
	if p == nil {
		return
	}
	n := nodeOf(tagged.Clear(p))
	atomic.StoreUint32(&n.counter, markBit)
	h.s.finishDelete(n)
}

// IsSafe reports whether p is currently observed by no protection,
// ignoring the mark bit.
func (h *CountingHandle[T]) IsSafe(p *T) bool {
	if p == nil {
		return true
	}
	n := nodeOf(tagged.Clear(p))
	return atomic.LoadUint32(&n.counter)&^markBit == 0
}

// Guard protects cell and returns a scoped Guard.
func (h *CountingHandle[T]) Guard(cell *atomic.Pointer[T]) *Guard[T] {
	return newGuard[T](h, h.Protect(cell))
}

// GuardRaw wraps p in a scoped Guard, incrementing its protection counter.
func (h *CountingHandle[T]) GuardRaw(p *T) *Guard[T] {
	h.ProtectRaw(p)
	return newGuard[T](h, p)
}

// DebugString reports the strategy's shared free pool size.
func (h *CountingHandle[T]) DebugString() string {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return fmt.Sprintf("CountingHandle{freePoolSize=%d}", h.s.free.Len())
}

var _ Handle[int] = (*CountingHandle[int])(nil)
