package allocator

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/alphadose/haxmap"
	"github.com/hollow-tm/reclaim/diagnostics"
)

// Arena is a bump allocator over pre-sized blocks of T: Alloc hands out
// the next unused slot in the current block, allocating a fresh block once
// the current one is exhausted. This deliberately avoids a go:linkname'd
// runtime.mallocgc call with a hand-built GC type descriptor to get a
// flexible array member: that trick risks heap corruption if the
// descriptor does not exactly match what the runtime's scanner expects, a
// risk not worth taking for an allocator meant to be reused across
// projects. Arena stays on plain Go slices instead.
//
// Freed slots are not reused by Alloc. Free only updates bookkeeping,
// since a true free list would need the same protection discipline the
// reclamation package already provides; an Arena is meant to sit
// underneath a reclamation strategy's Counting free pool, not duplicate
// it. allocated/freed are plain atomics, not guarded by mu: mu only
// serializes growing the current block, the one part of Alloc that is not
// safe to run concurrently. live is a concurrent set of addresses this
// arena has handed out and not yet freed, consulted by Free without ever
// taking mu, so many goroutines retiring nodes through the same arena do
// not contend with each other or with a concurrent Alloc.
type Arena[T any] struct {
	blockSize int
	mu        sync.Mutex
	current   []T
	used      int
	allocated atomic.Int64
	freed     atomic.Int64
	live      *haxmap.Map[uintptr, struct{}]
}

// NewArena returns an Arena that allocates in blocks of blockSize elements.
func NewArena[T any](blockSize int) *Arena[T] {
	if blockSize <= 0 {
		blockSize = 256
	}
	return &Arena[T]{
		blockSize: blockSize,
		live:      haxmap.New[uintptr, struct{}](),
	}
}

// Alloc returns a pointer into the arena's current block, growing it if
// necessary.
func (a *Arena[T]) Alloc() *T {
	a.mu.Lock()
	if a.current == nil || a.used == len(a.current) {
		a.current = make([]T, a.blockSize)
		a.used = 0
	}
	p := &a.current[a.used]
	a.used++
	a.mu.Unlock()

	a.allocated.Add(1)
	a.live.Set(uintptr(unsafe.Pointer(p)), struct{}{})
	return p
}

// Free records p as released for accounting purposes; the arena does not
// reuse p's memory, matching the bump-allocator design above. A p this
// arena never handed out, or one already freed, trips a debug assertion:
// this check is advisory, not a safety mechanism, since the Go heap still
// owns p's memory regardless of what live records.
func (a *Arena[T]) Free(p *T) {
	addr := uintptr(unsafe.Pointer(p))
	_, live := a.live.Get(addr)
	diagnostics.Assert("arena: Free called on an address this arena never allocated, or already freed", !live)
	a.live.Del(addr)
	a.freed.Add(1)
}

// NetAllocations reports allocated-minus-freed, a figure expected to stay
// far smaller than the number of create/delete pairs driven through a
// Counting strategy sharing this arena.
func (a *Arena[T]) NetAllocations() int64 {
	return a.allocated.Load() - a.freed.Load()
}

var _ Allocator[int] = (*Arena[int])(nil)
