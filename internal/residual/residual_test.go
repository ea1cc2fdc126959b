package residual

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

func runResidualRanks(t *testing.T, worldSize int, fn func(f *comm.LocalFabric)) {
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

func TestRunFindsTwoComponentsSingleRank(t *testing.T) {
	const n = 6
	p := part.NewTrivialSlice(n, 0, 1)
	edges := []comm.Edge{
		{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 0},
		{U: 3, V: 4}, {U: 4, V: 5}, {U: 5, V: 3},
	}
	fw := graph.FromLocalEdges(p, edges)
	bw := graph.TransposeLocal(p, fw)
	b := &graph.Bipartition{Part: p, Fw: fw, Bw: bw}

	sccID := make([]ids.Vertex, n)
	decided := mem.NewBitVector(n)

	world := comm.NewLocalWorld(1)
	f := comm.NewFabric(world, 0)
	localDecided := Run(b, sccID, decided, f)

	require.Equal(t, n, localDecided)
	for k := ids.Vertex(0); k < 3; k++ {
		require.EqualValues(t, 0, sccID[k])
	}
	for k := ids.Vertex(3); k < 6; k++ {
		require.EqualValues(t, 3, sccID[k])
	}
}

func TestRunIgnoresAlreadyDecidedVertices(t *testing.T) {
	// A pendant 3 -> 0 feeding into the cycle 0->1->2->0; vertex 3 is
	// pre-decided (as if trim already settled it), so residual must
	// only gather {0,1,2} and must not overwrite vertex 3's scc_id.
	const n = 4
	p := part.NewTrivialSlice(n, 0, 1)
	edges := []comm.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 0}, {U: 3, V: 0}}
	fw := graph.FromLocalEdges(p, edges)
	bw := graph.TransposeLocal(p, fw)
	b := &graph.Bipartition{Part: p, Fw: fw, Bw: bw}

	sccID := make([]ids.Vertex, n)
	decided := mem.NewBitVector(n)
	sccID[3] = 99
	decided.Set(3)

	world := comm.NewLocalWorld(1)
	f := comm.NewFabric(world, 0)
	localDecided := Run(b, sccID, decided, f)

	require.Equal(t, 3, localDecided)
	require.EqualValues(t, 99, sccID[3])
	for k := ids.Vertex(0); k < 3; k++ {
		require.EqualValues(t, 0, sccID[k])
	}
}

func TestRunSettlesRingAcrossRanks(t *testing.T) {
	const P = 3
	const n = 9
	var allEdges []comm.Edge
	for i := ids.Vertex(0); i < n; i++ {
		allEdges = append(allEdges, comm.Edge{U: i, V: (i + 1) % n})
	}

	totalDecided := 0
	var mu sync.Mutex
	sccIDs := make([][]ids.Vertex, P)
	runResidualRanks(t, P, func(f *comm.LocalFabric) {
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
		d := Run(b, sccID, decided, f)

		mu.Lock()
		totalDecided += d
		sccIDs[f.Rank()] = sccID
		mu.Unlock()
	})

	require.Equal(t, n, totalDecided)
	for _, row := range sccIDs {
		for _, v := range row {
			require.EqualValues(t, 0, v)
		}
	}
}
