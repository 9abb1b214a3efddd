package diagnostics

import (
	"sync"

	"github.com/petar/GoLLRB/llrb"
)

// ledgerEntry orders retired addresses by the sequence number they were
// retired in, so ExpectNextDestroyed can check "destroyed in order of
// retirement" without re-deriving an ordered structure from scratch.
type ledgerEntry struct {
	seq  uint64
	addr uintptr
}

func (e ledgerEntry) Less(other llrb.Item) bool {
	return e.seq < other.(ledgerEntry).seq
}

// RetireLedger tracks, in retirement order, every pointer a test run has
// retired but not yet observed destroyed. Backed by petar/GoLLRB so the
// minimum (oldest-retired, not-yet-destroyed) entry can be popped in
// O(log n).
type RetireLedger struct {
	mu   sync.Mutex
	tree *llrb.LLRB
	next uint64
}

// NewRetireLedger returns an empty ledger.
func NewRetireLedger() *RetireLedger {
	return &RetireLedger{tree: llrb.New()}
}

// Record notes addr as just retired and returns its retirement sequence
// number.
func (l *RetireLedger) Record(addr uintptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := l.next
	l.next++
	l.tree.ReplaceOrInsert(ledgerEntry{seq: seq, addr: addr})
	return seq
}

// ExpectNextDestroyed reports whether addr is the oldest still-outstanding
// retirement, and if so removes it from the ledger. A false result means
// either addr was not retired, was already observed destroyed, or some
// older retirement has not yet been observed destroyed, any of which
// signal an out-of-order destruction.
func (l *RetireLedger) ExpectNextDestroyed(addr uintptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	min := l.tree.Min()
	if min == nil {
		return false
	}
	entry := min.(ledgerEntry)
	if entry.addr != addr {
		return false
	}
	l.tree.DeleteMin()
	return true
}

// Outstanding returns how many retired-but-not-destroyed entries remain.
func (l *RetireLedger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Len()
}
