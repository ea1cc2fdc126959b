package comm

import (
	"sync"
	"testing"

	"github.com/dreamware/kaspan/internal/ids"
	"github.com/stretchr/testify/require"
)

func runRanks(t *testing.T, worldSize int, fn func(f *LocalFabric)) {
	t.Helper()
	world := NewLocalWorld(worldSize)
	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			fn(NewFabric(world, rank))
		}(r)
	}
	wg.Wait()
}

func TestAllreduceSum(t *testing.T) {
	const P = 4
	results := make([]int64, P)
	runRanks(t, P, func(f *LocalFabric) {
		results[f.Rank()] = f.AllreduceSum(int64(f.Rank() + 1))
	})
	for _, r := range results {
		require.EqualValues(t, 1+2+3+4, r)
	}
}

func TestAllreduceMaxDegreeTiebreakLargerVertex(t *testing.T) {
	const P = 3
	results := make([]DegreePivot, P)
	runRanks(t, P, func(f *LocalFabric) {
		local := DegreePivot{Product: 10, Vertex: ids.Vertex(f.Rank())}
		results[f.Rank()] = f.AllreduceMaxDegree(local)
	})
	for _, r := range results {
		require.Equal(t, DegreePivot{Product: 10, Vertex: 2}, r)
	}
}

func TestAlltoallCounts(t *testing.T) {
	const P = 3
	recv := make([][]int, P)
	var mu sync.Mutex
	runRanks(t, P, func(f *LocalFabric) {
		send := make([]int, P)
		for d := 0; d < P; d++ {
			send[d] = f.Rank() + d
		}
		r := f.Alltoall(send)
		mu.Lock()
		recv[f.Rank()] = r
		mu.Unlock()
	})
	for rank, r := range recv {
		for sender := 0; sender < P; sender++ {
			require.Equal(t, sender+rank, r[sender])
		}
	}
}

func TestAlltoallVerticesRoundTrip(t *testing.T) {
	const P = 3
	recv := make([][]ids.Vertex, P)
	var mu sync.Mutex
	runRanks(t, P, func(f *LocalFabric) {
		perDest := make([][]ids.Vertex, P)
		for d := 0; d < P; d++ {
			perDest[d] = []ids.Vertex{ids.Vertex(f.Rank()*100 + d)}
		}
		r := f.AlltoallVertices(perDest)
		mu.Lock()
		recv[f.Rank()] = r
		mu.Unlock()
	})
	for rank, r := range recv {
		require.Len(t, r, P)
		seen := make(map[ids.Vertex]bool)
		for _, v := range r {
			seen[v] = true
		}
		for sender := 0; sender < P; sender++ {
			require.True(t, seen[ids.Vertex(sender*100+rank)])
		}
	}
}

func TestBroadcast(t *testing.T) {
	const P = 4
	results := make([]ids.Vertex, P)
	runRanks(t, P, func(f *LocalFabric) {
		v := f.Broadcast(2, ids.Vertex(f.Rank())*7)
		results[f.Rank()] = v
	})
	for _, v := range results {
		require.EqualValues(t, 14, v)
	}
}

func TestAllgathervVertices(t *testing.T) {
	const P = 3
	var mu sync.Mutex
	var gathered [][]ids.Vertex
	var counts [][]int
	runRanks(t, P, func(f *LocalFabric) {
		local := []ids.Vertex{ids.Vertex(f.Rank()), ids.Vertex(f.Rank()) + 100}
		all, c := f.AllgathervVertices(local)
		mu.Lock()
		gathered = append(gathered, all)
		counts = append(counts, c)
		mu.Unlock()
	})
	for _, all := range gathered {
		require.Len(t, all, 2*P)
	}
	for _, c := range counts {
		for _, v := range c {
			require.Equal(t, 2, v)
		}
	}
}

func TestBarrierReleasesAllRanks(t *testing.T) {
	const P = 5
	var mu sync.Mutex
	count := 0
	runRanks(t, P, func(f *LocalFabric) {
		f.Barrier()
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.Equal(t, P, count)
}

func TestDegreeMaxReduceTiebreak(t *testing.T) {
	a := DegreePivot{Product: 5, Vertex: 1}
	b := DegreePivot{Product: 5, Vertex: 2}
	require.Equal(t, b, DegreeMaxReduce(a, b))
	require.Equal(t, b, DegreeMaxReduce(b, a))

	c := DegreePivot{Product: 9, Vertex: 0}
	require.Equal(t, c, DegreeMaxReduce(c, b))
}
