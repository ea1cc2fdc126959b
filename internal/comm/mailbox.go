package comm

import (
	"sync"

	"github.com/dreamware/kaspan/internal/ids"
)

// mailbox is the barrier/readiness primitive HTTPFabric rendezvouses
// collectives through: every round of every collective is identified by
// a (round, kind) pair, and a rank blocks in WaitAll until the expected
// number of per-sender contributions for that pair have arrived over
// HTTP. Delivery is push-driven: incoming HTTP handlers call Put, and
// WaitAll blocks on a condition variable until the count is met.
type mailbox struct {
	mu   sync.Mutex
	cond *sync.Cond
	bins map[roundKey]map[ids.Rank][]byte
}

type roundKey struct {
	round int64
	kind  string
}

func newMailbox() *mailbox {
	m := &mailbox{bins: make(map[roundKey]map[ids.Rank][]byte)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put records one sender's contribution for (round, kind). Safe to call
// from an HTTP handler goroutine.
func (m *mailbox) Put(round int64, kind string, from ids.Rank, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey{round, kind}
	bin, ok := m.bins[key]
	if !ok {
		bin = make(map[ids.Rank][]byte)
		m.bins[key] = bin
	}
	bin[from] = payload
	m.cond.Broadcast()
}

// WaitAll blocks until (round, kind) has received from expected distinct
// ranks, then returns their payloads ordered by ascending rank and
// clears the bin (rounds are never revisited).
func (m *mailbox) WaitAll(round int64, kind string, expected int) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey{round, kind}
	for len(m.bins[key]) < expected {
		m.cond.Wait()
	}
	bin := m.bins[key]
	delete(m.bins, key)

	out := make([][]byte, 0, len(bin))
	ranks := make([]ids.Rank, 0, len(bin))
	for r := range bin {
		ranks = append(ranks, r)
	}
	// Small N (world size): insertion sort is plenty and keeps this
	// file free of a sort.Slice import for a handful of ranks.
	for i := 1; i < len(ranks); i++ {
		for j := i; j > 0 && ranks[j-1] > ranks[j]; j-- {
			ranks[j-1], ranks[j] = ranks[j], ranks[j-1]
		}
	}
	for _, r := range ranks {
		out = append(out, bin[r])
	}
	return out
}
