package comm

import "sync"

// cyclicBarrier rendezvous-synchronizes a fixed number of goroutines,
// reusable across an unbounded number of rounds. It is the in-process
// stand-in for MPI_Barrier and for the implicit synchronization every
// other collective in LocalFabric relies on: each round is two Await()
// calls, one after every rank has written its contribution into shared
// scratch and one after every rank has read it back out, so a fast rank
// can never race ahead into the next round's write before a slow rank
// has finished reading the current one.
type cyclicBarrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	waiting int
	gen     uint64
}

func newCyclicBarrier(n int) *cyclicBarrier {
	b := &cyclicBarrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Await blocks the calling goroutine until n goroutines (across all
// ranks sharing this barrier) have called Await for the current
// generation, then releases all of them together.
func (b *cyclicBarrier) Await() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.gen
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	for b.gen == gen {
		b.cond.Wait()
	}
}
