package retireq

import "sync/atomic"

// bucketState is the double-buffered slab a Bucket currently hands out
// slots from, plus the monotonic claim counter producers fetch-add over. A
// claim past capacity is a failed push, mirroring the source's pointer
// fetch_add past the end of the slab.
type bucketState[T any] struct {
	buf []T
	idx atomic.Int64
}

// Bucket is a many-producer/single-consumer bounded buffer:
// producers claim a slot with a single atomic fetch-add and write directly
// into it, lock-free; the owning consumer calls PullAll to atomically swap
// in the other of the two backing slabs and collect everything producers
// claimed in the outgoing one.
type Bucket[T any] struct {
	capacity int
	buffers  [2][]T
	firstIsA bool
	state    atomic.Pointer[bucketState[T]]
}

// NewBucket returns a Bucket with the given fixed per-slab capacity.
func NewBucket[T any](capacity int) *Bucket[T] {
	b := &Bucket[T]{capacity: capacity, firstIsA: true}
	b.buffers[0] = make([]T, capacity)
	b.buffers[1] = make([]T, capacity)
	st := &bucketState[T]{buf: b.buffers[0]}
	b.state.Store(st)
	return b
}

// Capacity returns the fixed per-slab capacity.
func (b *Bucket[T]) Capacity() int { return b.capacity }

// Push claims the next free slot in the currently active slab and stores
// v there. It reports false if the slab was already full at the time of
// the claim; callers racing a concurrent PullAll may also land safely in
// the freshly swapped-in slab instead, exactly as in the source.
func (b *Bucket[T]) Push(v T) bool {
	st := b.state.Load()
	i := st.idx.Add(1) - 1
	if i >= int64(b.capacity) {
		return false
	}
	st.buf[i] = v
	return true
}

// PullAll swaps in the other backing slab and returns every element a
// producer claimed in the outgoing slab before the swap. Owning-thread
// only: concurrent PullAll calls are not supported, matching the source's
// single-consumer contract.
func (b *Bucket[T]) PullAll() []T {
	var next []T
	if b.firstIsA {
		next = b.buffers[1]
	} else {
		next = b.buffers[0]
	}
	var zero T
	for i := range next {
		next[i] = zero
	}
	old := b.state.Swap(&bucketState[T]{buf: next})
	b.firstIsA = !b.firstIsA

	end := old.idx.Load()
	if end > int64(b.capacity) {
		end = int64(b.capacity)
	}
	if end <= 0 {
		return nil
	}
	return old.buf[:end]
}

// Clear resets the currently active slab in place, storing the zero value
// into every slot a producer may have claimed and resetting the claim
// counter, without swapping slabs. This performs real per-slot work, not a
// no-op: the source's clear() is a documented no-op bug, and this
// implementation does not reproduce it.
func (b *Bucket[T]) Clear() {
	st := b.state.Load()
	var zero T
	for i := range st.buf {
		st.buf[i] = zero
	}
	st.idx.Store(0)
}
