package graph

import (
	"sync"
	"testing"

	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/part"
	"github.com/stretchr/testify/require"
)

func runGraphRanks(t *testing.T, worldSize int, fn func(f *comm.LocalFabric)) {
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

func TestFromLocalEdgesBuildsMonotoneCSR(t *testing.T) {
	p := part.NewTrivialSlice(4, 0, 1)
	edges := []comm.Edge{
		{U: 0, V: 1},
		{U: 0, V: 2},
		{U: 1, V: 2},
		{U: 2, V: 3},
	}
	c := FromLocalEdges(p, edges)

	require.Equal(t, []ids.Index{0, 2, 3, 4, 4}, c.Head)
	require.EqualValues(t, 2, c.Degree(0))
	require.EqualValues(t, 1, c.Degree(1))
	require.EqualValues(t, 1, c.Degree(2))
	require.EqualValues(t, 0, c.Degree(3))

	var neighbors []ids.Vertex
	c.EachNeighbor(0, func(v ids.Vertex) { neighbors = append(neighbors, v) })
	require.ElementsMatch(t, []ids.Vertex{1, 2}, neighbors)
}

func TestTransposeLocalIsExactReverse(t *testing.T) {
	p := part.NewTrivialSlice(4, 0, 1)
	edges := []comm.Edge{
		{U: 0, V: 1},
		{U: 0, V: 2},
		{U: 1, V: 2},
		{U: 2, V: 3},
	}
	fw := FromLocalEdges(p, edges)
	bw := TransposeLocal(p, fw)

	b := &Bipartition{Part: p, Fw: fw, Bw: bw}
	b.Check()

	require.EqualValues(t, 0, bw.Degree(0))
	require.EqualValues(t, 1, bw.Degree(1)) // 0 -> 1
	require.EqualValues(t, 2, bw.Degree(2)) // 0 -> 2, 1 -> 2
	require.EqualValues(t, 1, bw.Degree(3)) // 2 -> 3

	var into2 []ids.Vertex
	bw.EachNeighbor(2, func(v ids.Vertex) { into2 = append(into2, v) })
	require.ElementsMatch(t, []ids.Vertex{0, 1}, into2)
}

func TestTransposeDistributedMatchesConsistencyInvariant(t *testing.T) {
	const P = 3
	const n = 9
	// A ring: i -> (i+1) mod n, split across ranks so every rank owns
	// edges crossing into its neighbors' partitions.
	var allEdges []comm.Edge
	for i := ids.Vertex(0); i < n; i++ {
		allEdges = append(allEdges, comm.Edge{U: i, V: (i + 1) % n})
	}

	type result struct {
		bw *CSR
		p  part.Part
	}
	results := make([]result, P)
	runGraphRanks(t, P, func(f *comm.LocalFabric) {
		p := part.NewTrivialSlice(n, f.Rank(), P)
		var local []comm.Edge
		for _, e := range allEdges {
			if p.HasLocal(e.U) {
				local = append(local, e)
			}
		}
		fw := FromLocalEdges(p, local)
		bw := TransposeDistributed(p, fw, f)
		results[f.Rank()] = result{bw: bw, p: p}
	})

	// The ring's consistency invariant: vertex (i+1)%n has exactly one
	// backward neighbor, i.
	for _, r := range results {
		for k := ids.Vertex(0); k < r.p.LocalN(); k++ {
			global := r.p.ToGlobal(k)
			require.EqualValues(t, 1, r.bw.Degree(k))
			var got ids.Vertex
			r.bw.EachNeighbor(k, func(v ids.Vertex) { got = v })
			require.EqualValues(t, (global-1+n)%n, got)
		}
	}
}
