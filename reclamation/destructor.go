package reclamation

import (
	"unsafe"

	"github.com/hollow-tm/reclaim/allocator"
	"github.com/hollow-tm/reclaim/diagnostics"
)

// Destructor is the injectable policy every strategy routes reclamation
// through instead of destroying nodes directly, so callers can observe or
// redirect what happens to a node once no handle can still see it. The
// default (RawDelete) mirrors the source's default_destructor: drop the
// last reference and let the collector do the rest.
type Destructor[T any] interface {
	Destroy(p *T)
}

type destructorFunc[T any] func(*T)

func (f destructorFunc[T]) Destroy(p *T) { f(p) }

// RawDelete returns a Destructor that runs cleanup, if non-nil, and then
// releases p back to alloc, if non-nil. A strategy whose CreatePointer
// obtains storage from the same alloc should pass it here so every
// create/destroy pair stays balanced through the allocator's own
// accounting.
func RawDelete[T any](cleanup func(*T), alloc allocator.Allocator[T]) Destructor[T] {
	return destructorFunc[T](func(p *T) {
		if cleanup != nil {
			cleanup(p)
		}
		if alloc != nil {
			alloc.Free(p)
		}
	})
}

// Noop returns a destructor policy that does nothing, for strategies under
// test that want to observe retirement without tearing anything down.
func Noop[T any]() Destructor[T] {
	return destructorFunc[T](func(*T) {})
}

// Poison wraps another destructor policy, recording p's address in tracker
// (if non-nil) and, in debug builds via diagnostics.Assertf, panicking if
// that address was already recorded, then zeroing *p before delegating to next so a
// use-after-free read observes the zero value instead of stale data. This
// is the Go analogue of the source's poisoning destructor: cheap
// use-after-free detection for test runs, never used on a hot path.
func Poison[T any](next Destructor[T], tracker *diagnostics.DestroyedOnceTracker) Destructor[T] {
	return destructorFunc[T](func(p *T) {
		if tracker != nil {
			addr := uintptr(unsafe.Pointer(p))
			first := tracker.MarkDestroyed(addr)
			diagnostics.Assertf(!first, "double destroy at %#x", addr)
		}
		var zero T
		*p = zero
		next.Destroy(p)
	})
}
