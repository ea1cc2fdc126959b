package comm

import (
	"testing"

	"github.com/dreamware/kaspan/internal/ids"
	"github.com/stretchr/testify/require"
)

// spinUpRanks builds a WorldSize-rank HTTPFabric cluster over real
// loopback sockets and returns it alongside a teardown func.
func spinUpRanks(t *testing.T, worldSize int) ([]*HTTPFabric, func()) {
	t.Helper()
	addrs := make([]string, worldSize)
	for r := 0; r < worldSize; r++ {
		addr, err := FreePort()
		require.NoError(t, err)
		addrs[r] = addr
	}
	fabrics := make([]*HTTPFabric, worldSize)
	for r := 0; r < worldSize; r++ {
		f, err := NewHTTPFabric(ids.Rank(r), addrs, nil)
		require.NoError(t, err)
		fabrics[r] = f
	}
	return fabrics, func() {
		for _, f := range fabrics {
			_ = f.Close()
		}
	}
}

func TestHTTPFabricAllreduceSum(t *testing.T) {
	fabrics, teardown := spinUpRanks(t, 3)
	defer teardown()

	results := make([]int64, 3)
	done := make(chan struct{}, 3)
	for r := 0; r < 3; r++ {
		r := r
		go func() {
			results[r] = fabrics[r].AllreduceSum(int64(r + 1))
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	for r := 0; r < 3; r++ {
		require.EqualValues(t, 6, results[r])
	}
}

func TestHTTPFabricBroadcastFromNonZeroRoot(t *testing.T) {
	fabrics, teardown := spinUpRanks(t, 3)
	defer teardown()

	root := ids.Rank(2)
	results := make([]ids.Vertex, 3)
	done := make(chan struct{}, 3)
	for r := 0; r < 3; r++ {
		r := r
		go func() {
			var local ids.Vertex
			if ids.Rank(r) == root {
				local = 42
			}
			results[r] = fabrics[r].Broadcast(root, local)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	for r := 0; r < 3; r++ {
		require.EqualValues(t, 42, results[r])
	}
}

func TestHTTPFabricAlltoallVerticesDistinctPerDestinationPayloads(t *testing.T) {
	fabrics, teardown := spinUpRanks(t, 3)
	defer teardown()

	// Rank r sends [r*10+d] to destination d.
	results := make([][]ids.Vertex, 3)
	done := make(chan struct{}, 3)
	for r := 0; r < 3; r++ {
		r := r
		go func() {
			perDest := make([][]ids.Vertex, 3)
			for d := 0; d < 3; d++ {
				perDest[d] = []ids.Vertex{ids.Vertex(r*10 + d)}
			}
			results[r] = fabrics[r].AlltoallVertices(perDest)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	for d := 0; d < 3; d++ {
		got := map[ids.Vertex]bool{}
		for _, v := range results[d] {
			got[v] = true
		}
		for r := 0; r < 3; r++ {
			require.True(t, got[ids.Vertex(r*10+d)], "destination %d missing contribution from rank %d", d, r)
		}
	}
}

func TestHTTPFabricAlltoallEdgesDistinctPerDestinationPayloads(t *testing.T) {
	fabrics, teardown := spinUpRanks(t, 2)
	defer teardown()

	results := make([][]Edge, 2)
	done := make(chan struct{}, 2)
	for r := 0; r < 2; r++ {
		r := r
		go func() {
			perDest := make([][]Edge, 2)
			for d := 0; d < 2; d++ {
				perDest[d] = []Edge{{U: ids.Vertex(r), V: ids.Vertex(d)}}
			}
			results[r] = fabrics[r].AlltoallEdges(perDest)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 2; i++ {
		<-done
	}
	for d := 0; d < 2; d++ {
		require.Len(t, results[d], 2)
		seen := map[ids.Vertex]bool{}
		for _, e := range results[d] {
			require.EqualValues(t, d, e.V)
			seen[e.U] = true
		}
		require.True(t, seen[0])
		require.True(t, seen[1])
	}
}

func TestHTTPFabricBarrierReleasesAllRanks(t *testing.T) {
	fabrics, teardown := spinUpRanks(t, 4)
	defer teardown()

	done := make(chan struct{}, 4)
	for r := 0; r < 4; r++ {
		r := r
		go func() {
			fabrics[r].Barrier()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}

func TestHTTPFabricRankAndWorldSize(t *testing.T) {
	fabrics, teardown := spinUpRanks(t, 3)
	defer teardown()

	for r := 0; r < 3; r++ {
		require.EqualValues(t, r, fabrics[r].Rank())
		require.Equal(t, 3, fabrics[r].WorldSize())
	}
}
