// Command reclaimstress drives the reclamation package's strategies
// through end-to-end stress scenarios: a shared counted node swapped
// under concurrent readers (hazard), a circular buffer wraparound, and a
// counting create/safe_delete recycler run. Not a benchmark harness; a
// correctness-stress test program.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/hollow-tm/reclaim"
	"github.com/hollow-tm/reclaim/allocator"
	"github.com/hollow-tm/reclaim/reclamation"
	"github.com/hollow-tm/reclaim/retireq"
)

var totalOps reclaim.AtomicInt

func main() {
	p := flag.Int("p", 4, "number of worker threads")
	n := flag.Int("n", 100000, "number of operations per thread")
	it := flag.Int("it", 1, "number of iterations of the whole scenario set")
	help := flag.Bool("h", false, "print usage and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	for i := 0; i < *it; i++ {
		fmt.Printf("iteration %d/%d\n", i+1, *it)
		runHazardStack(*p, *n)
		runCountingRecycler(*n)
		runRingWraparound(*n)
	}
	fmt.Printf("all scenarios completed, %d total operations driven\n", totalOps.Load())
}

// countedNode is a node with an id field: a producer swaps it into a
// shared cell while readers protect it and increment a shared read counter.
type countedNode struct {
	id int
}

func runHazardStack(workers, opsPerWorker int) {
	nodeArena := allocator.NewArena[countedNode](64)
	strategy := reclamation.NewHazard[countedNode](
		reclamation.HazardConfig{MaxThreads: workers + 1, MaxProtections: 4}, nil, nodeArena)

	var cell atomic.Pointer[countedNode]
	owner, err := strategy.GetHandle()
	if err != nil {
		fmt.Fprintln(os.Stderr, "reclaimstress: hazard owner handle:", err)
		os.Exit(1)
	}
	cell.Store(owner.CreatePointer(func() countedNode { return countedNode{id: 0} }))

	done := make(chan struct{})
	var readCount reclaim.AtomicUint

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			h, err := strategy.GetHandle()
			if err != nil {
				fmt.Fprintln(os.Stderr, "reclaimstress: hazard reader handle:", err)
				return
			}
			defer h.Release()
			for {
				select {
				case <-done:
					return
				default:
				}
				p := h.Protect(&cell)
				if p != nil {
					readCount.Add(1)
				}
				h.Unprotect(p)
			}
		}()
	}

	for i := 1; i <= opsPerWorker; i++ {
		next := owner.CreatePointer(func() countedNode { return countedNode{id: i} })
		prior := cell.Swap(next)
		owner.SafeDelete(prior)
	}
	totalOps.Add(opsPerWorker)
	close(done)
	wg.Wait()
	owner.SafeDelete(cell.Load())
	owner.Release()
	strategy.Close()

	fmt.Printf("  hazard stack: %d swaps observed by %d readers, %d total reads, node allocator net=%d\n",
		opsPerWorker, workers, readCount.Load(), nodeArena.NetAllocations())
}

func runCountingRecycler(n int) {
	var destroyed int64
	nodeArena := allocator.NewArena[reclamation.CountingNode[int]](64)
	strategy := reclamation.NewCounting[int](reclamation.RawDelete[int](func(*int) {
		atomic.AddInt64(&destroyed, 1)
	}, nil), nodeArena)
	h := strategy.GetHandle()

	for i := 0; i < n; i++ {
		p := h.CreatePointer(func() int { return i })
		h.SafeDelete(p)
	}
	totalOps.Add(n)
	fmt.Printf("  counting recycler: %d create/safe_delete pairs, %d destroyed, node allocator net=%d\n",
		n, destroyed, nodeArena.NetAllocations())
}

func runRingWraparound(n int) {
	capacity := 64
	r := retireq.NewRing[int](capacity)
	for i := 0; i < 2*capacity; i++ {
		r.PushBack(i)
	}
	for i := 0; i < capacity; i++ {
		r.PopFront()
	}
	for i := 0; i < capacity; i++ {
		r.PushBack(i)
	}
	if r.Size() != r.Capacity() {
		fmt.Fprintf(os.Stderr, "reclaimstress: ring size = %d, want %d\n", r.Size(), r.Capacity())
		os.Exit(1)
	}
	fmt.Printf("  ring wraparound: size=%d after %d total pushes\n", r.Size(), 3*capacity)
}
