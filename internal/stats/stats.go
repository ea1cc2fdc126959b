// Package stats implements the per-rank timing/counter tree cmd/bench
// serializes to --output_file. One Tree is built per rank; cmd/bench
// assembles the final per-rank JSON object around it.
package stats

import (
	"sync"
	"time"
)

// Tree accumulates named phase durations and named counters for one
// rank's run. Safe for concurrent use, though in practice a single rank
// only ever records from its own goroutine.
type Tree struct {
	mu        sync.Mutex
	durations map[string]time.Duration
	counts    map[string]int64
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{
		durations: make(map[string]time.Duration),
		counts:    make(map[string]int64),
	}
}

// Timer is a single in-flight phase measurement returned by Start.
type Timer struct {
	tree  *Tree
	name  string
	begin time.Time
}

// Start begins timing the named phase; call Stop on the result when the
// phase completes. Phases are additive: timing the same name more than
// once accumulates into the same total (a color-propagation loop that
// runs N rounds records N contributions under "color").
func (t *Tree) Start(name string) *Timer {
	return &Timer{tree: t, name: name, begin: time.Now()}
}

// Stop records the elapsed time since Start into the tree under the
// timer's name.
func (tm *Timer) Stop() {
	elapsed := time.Since(tm.begin)
	tm.tree.mu.Lock()
	defer tm.tree.mu.Unlock()
	tm.tree.durations[tm.name] += elapsed
}

// Count adds delta to the named counter (e.g. "vertices_decided",
// "frontier_rounds").
func (t *Tree) Count(name string, delta int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[name] += delta
}

// Snapshot is the JSON-serializable, immutable view of a Tree returned
// by Tree.Snapshot, copied out under lock so the live Tree can keep
// accumulating after the snapshot is taken.
type Snapshot struct {
	TimingsMS map[string]int64 `json:"timings_ms"`
	Counters  map[string]int64 `json:"counters"`
}

// Snapshot copies out the tree's current state.
func (t *Tree) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TimingsMS: make(map[string]int64, len(t.durations)),
		Counters:  make(map[string]int64, len(t.counts)),
	}
	for name, d := range t.durations {
		s.TimingsMS[name] = d.Milliseconds()
	}
	for name, c := range t.counts {
		s.Counters[name] = c
	}
	return s
}
