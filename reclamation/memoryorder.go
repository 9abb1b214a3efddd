package reclamation

import "sync/atomic"

// SequentialConsistency is the runtime analogue of the source's
// compile-time MAKE_SEQ_CST switch. Go's happens-before relation already
// gives every sync/atomic operation sequential consistency among
// themselves, so flipping this bit does not change the memory model today;
// it exists so a caller or test can record the intent to run under the
// strictest ordering discipline, ahead of any strategy here actually
// offering a relaxed alternative to branch on it.
var SequentialConsistency atomic.Bool
