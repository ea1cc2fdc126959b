package trim

import (
	"sync"
	"testing"

	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/mem"
	"github.com/dreamware/kaspan/internal/part"
	"github.com/stretchr/testify/require"
)

func runTrimRanks(t *testing.T, worldSize int, fn func(f *comm.LocalFabric)) {
	t.Helper()
	world := comm.NewLocalWorld(worldSize)
	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			fn(comm.NewFabric(world, rank))
		}(r)
	}
	wg.Wait()
}

// A chain 0 -> 1 -> 2 -> 3 with a single-rank partition should fully
// trim: every vertex has either zero indegree (0) or zero outdegree (3),
// and trimming that cascades in one rank collapses the whole chain.
func TestFirstTrimCollapsesChain(t *testing.T) {
	const n = 4
	p := part.NewTrivialSlice(n, 0, 1)
	edges := []comm.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 3}}
	fw := graph.FromLocalEdges(p, edges)
	bw := graph.TransposeLocal(p, fw)
	b := &graph.Bipartition{Part: p, Fw: fw, Bw: bw}

	sccID := make([]ids.Vertex, n)
	decided := mem.NewBitVector(n)

	world := comm.NewLocalWorld(1)
	f := comm.NewFabric(world, 0)
	localDecided, _ := First(b, sccID, decided, f)

	require.Equal(t, n, localDecided)
	for k := ids.Vertex(0); k < n; k++ {
		require.True(t, decided.Get(int(k)))
		require.EqualValues(t, k, sccID[k])
	}
}

// A single directed cycle has no zero-degree vertex anywhere, so trim
// must decide nothing and leave every vertex as a pivot candidate.
func TestFirstTrimLeavesCycleUndecided(t *testing.T) {
	const n = 4
	p := part.NewTrivialSlice(n, 0, 1)
	edges := []comm.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 3}, {U: 3, V: 0}}
	fw := graph.FromLocalEdges(p, edges)
	bw := graph.TransposeLocal(p, fw)
	b := &graph.Bipartition{Part: p, Fw: fw, Bw: bw}

	sccID := make([]ids.Vertex, n)
	decided := mem.NewBitVector(n)

	world := comm.NewLocalWorld(1)
	f := comm.NewFabric(world, 0)
	localDecided, candidate := First(b, sccID, decided, f)

	require.Equal(t, 0, localDecided)
	require.EqualValues(t, 1, candidate.Product) // every vertex has in=out=1
}

// Distributed: a ring spanning 3 ranks has no zero-degree vertex, so
// trim must decide nothing anywhere and the exchange must still
// terminate (no message leaks a rank into an infinite loop).
func TestFirstTrimTerminatesOnRing(t *testing.T) {
	const P = 3
	const n = 9
	var allEdges []comm.Edge
	for i := ids.Vertex(0); i < n; i++ {
		allEdges = append(allEdges, comm.Edge{U: i, V: (i + 1) % n})
	}

	totalDecided := make([]int, P)
	runTrimRanks(t, P, func(f *comm.LocalFabric) {
		p := part.NewTrivialSlice(n, f.Rank(), P)
		var local []comm.Edge
		for _, e := range allEdges {
			if p.HasLocal(e.U) {
				local = append(local, e)
			}
		}
		fw := graph.FromLocalEdges(p, local)
		bw := graph.TransposeDistributed(p, fw, f)
		b := &graph.Bipartition{Part: p, Fw: fw, Bw: bw}

		sccID := make([]ids.Vertex, p.LocalN())
		decided := mem.NewBitVector(int(p.LocalN()))
		localDecided, _ := First(b, sccID, decided, f)
		totalDecided[f.Rank()] = localDecided
	})

	for _, d := range totalDecided {
		require.Equal(t, 0, d)
	}
}

func TestNormalTrimDecidesOnlyAgainstUndecidedNeighbors(t *testing.T) {
	// 0 -> 1 -> 2, plus 2 -> 0 closing a cycle, and a pendant 3 -> 1.
	// After manually deciding 3 (simulating a prior phase), vertex 1's
	// in-edges are {0, 3}; with 3 already decided, re-running Normal
	// should NOT decide 1 on in-degree alone since 0 is still active;
	// but 3 alone contributed one already-inactive edge, leaving 1 with
	// one active in-edge (from 0), so it stays undecided.
	const n = 4
	p := part.NewTrivialSlice(n, 0, 1)
	edges := []comm.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 0}, {U: 3, V: 1}}
	fw := graph.FromLocalEdges(p, edges)
	bw := graph.TransposeLocal(p, fw)
	b := &graph.Bipartition{Part: p, Fw: fw, Bw: bw}

	sccID := make([]ids.Vertex, n)
	decided := mem.NewBitVector(n)
	sccID[3] = 3
	decided.Set(3)

	localDecided := Normal(b, sccID, decided)
	require.Equal(t, 0, localDecided)
	require.False(t, decided.Get(1))
}
