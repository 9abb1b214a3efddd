// Package containers holds concurrent data structures built purely on top
// of the reclamation package's public Handle/Guard contract, the same way
// a third-party caller would consume it.
package containers

import (
	"sync/atomic"

	"github.com/hollow-tm/reclaim/reclamation"
)

// StackNode is a Treiber stack's link node. Its field order carries no
// meaning (unlike reclamation's internal node layouts) since Stack never
// aliases a *StackNode[T] as a *T; callers always work with *StackNode[T]
// directly through the reclamation handle they supply.
type StackNode[T any] struct {
	Value T
	next  atomic.Pointer[StackNode[T]]
}

// Stack is a lock-free, Treiber-style concurrent singly-linked stack.
// Adapted from the source's concurrent_singly_linked_list, generalized
// from its find/insert traversal to push/pop, using the same CAS-loop
// idiom as that list's insert. Every operation takes the
// caller's reclamation handle explicitly rather than owning one, so a
// Stack can be shared by goroutines using different handles from the same
// strategy.
type Stack[T any] struct {
	head atomic.Pointer[StackNode[T]]
}

// NewStack returns an empty stack.
func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push allocates a node for value via h and links it in as the new head.
func (s *Stack[T]) Push(h reclamation.Handle[StackNode[T]], value T) {
	n := h.CreatePointer(func() StackNode[T] { return StackNode[T]{Value: value} })
	for {
		first := s.head.Load()
		n.next.Store(first)
		if s.head.CompareAndSwap(first, n) {
			return
		}
	}
}

// Pop protects the current head via h, attempts to swing head to the next
// node, and retires the popped node through h on success. ok is false if
// the stack was empty.
func (s *Stack[T]) Pop(h reclamation.Handle[StackNode[T]]) (result T, ok bool) {
	for {
		current := h.Protect(&s.head)
		if current == nil {
			return result, false
		}
		next := current.next.Load()
		if s.head.CompareAndSwap(current, next) {
			result = current.Value
			h.Unprotect(current)
			h.SafeDelete(current)
			return result, true
		}
		h.Unprotect(current)
	}
}

// Peek protects the current head through a scoped Guard without removing
// it, so the caller can read its Value while the guard stays open. The
// caller must Close the guard when done.
func (s *Stack[T]) Peek(h reclamation.Handle[StackNode[T]]) *reclamation.Guard[StackNode[T]] {
	return h.Guard(&s.head)
}
