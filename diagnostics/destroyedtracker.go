package diagnostics

import (
	"github.com/cornelk/hashmap"
)

// DestroyedOnceTracker is a concurrent set of addresses that have already
// been destroyed, consulted by the reclamation package's Poison
// destructor policy (which any strategy can be given) to assert in debug
// builds that destroy is called at most once per node (universal
// invariant 1). Backed by cornelk/hashmap so arbitrarily many
// concurrent retiring goroutines can mark an address without a shared
// mutex.
type DestroyedOnceTracker struct {
	seen *hashmap.Map[uintptr, bool]
}

// NewDestroyedOnceTracker returns an empty tracker.
func NewDestroyedOnceTracker() *DestroyedOnceTracker {
	return &DestroyedOnceTracker{seen: hashmap.New[uintptr, bool]()}
}

// MarkDestroyed records addr as destroyed and reports whether this was the
// first time: false means addr was already marked, signalling a
// double-destroy bug to the caller. Insert itself reports whether it added
// the key, so two goroutines racing to mark the same addr can never both
// see "not present": cornelk/hashmap's Insert is the atomic compare-and-set,
// not the Get beforehand.
func (t *DestroyedOnceTracker) MarkDestroyed(addr uintptr) bool {
	return t.seen.Insert(addr, true)
}

// Reset clears every recorded address, for reuse across test cases.
func (t *DestroyedOnceTracker) Reset() {
	t.seen = hashmap.New[uintptr, bool]()
}

// Count returns how many distinct addresses have been marked destroyed.
func (t *DestroyedOnceTracker) Count() int {
	return t.seen.Len()
}
