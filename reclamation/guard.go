package reclamation

// protector is the subset of Handle a Guard needs in order to release its
// own protection; kept narrow so Guard does not need the full Handle[T]
// interface just to call Unprotect.
type protector[T any] interface {
	Unprotect(p *T)
}

// Guard extends a protection for the lifetime of a lexical scope. Go has no
// destructors, so the scope discipline the source's reclamation_guard gets
// for free is the caller's responsibility here: always `defer g.Close()`
// immediately after obtaining one.
type Guard[T any] struct {
	_   noCopy
	h   protector[T]
	ptr *T
}

func newGuard[T any](h protector[T], ptr *T) *Guard[T] {
	return &Guard[T]{h: h, ptr: ptr}
}

// Get returns the protected pointer, or nil if the guard is empty.
func (g *Guard[T]) Get() *T { return g.ptr }

// Valid reports whether the guard currently holds a non-nil protection.
func (g *Guard[T]) Valid() bool { return g.ptr != nil }

// Take hands the protected pointer off to the caller without releasing it;
// the guard is left empty. Mirrors the source's move-leaves-null semantics
// for a guard passed onward instead of dropped in its own scope.
func (g *Guard[T]) Take() *T {
	p := g.ptr
	g.ptr = nil
	return p
}

// Close releases the protection, if any. Safe to call more than once.
func (g *Guard[T]) Close() {
	if g.ptr != nil {
		g.h.Unprotect(g.ptr)
		g.ptr = nil
	}
}
