package comm

import (
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
)

// Fabric is the collective facade: typed wrappers around the handful of
// collectives the pipeline actually needs. Every method here is
// collective: every rank in the World must call it, in the same order,
// for the pipeline to make progress.
type Fabric interface {
	// Rank returns the calling rank's index in [0, WorldSize()).
	Rank() ids.Rank
	// WorldSize returns the number of ranks P.
	WorldSize() int

	// AllreduceSum sums local across all ranks and returns the total to
	// every rank.
	AllreduceSum(local int64) int64

	// AllreduceMaxDegree applies DegreeMaxReduce across all ranks'
	// local DegreePivot values and returns the winner to every rank.
	AllreduceMaxDegree(local DegreePivot) DegreePivot

	// Alltoall exchanges one int per destination rank: sendCounts[r] is
	// what the caller intends to send to rank r; the returned
	// recvCounts[r] is what rank r intends to send to the caller.
	Alltoall(sendCounts []int) (recvCounts []int)

	// AlltoallVertices exchanges variable-length vertex payloads:
	// perDest[r] is the caller's outgoing batch for rank r. Returns the
	// concatenation of every rank's incoming batch for the caller, in
	// ascending sender-rank order.
	AlltoallVertices(perDest [][]ids.Vertex) []ids.Vertex

	// AlltoallEdges is AlltoallVertices' Edge-payload counterpart.
	AlltoallEdges(perDest [][]Edge) []Edge

	// AllgatherInt gathers one int per rank, in rank order, to every
	// rank.
	AllgatherInt(local int) []int

	// AllgathervVertices gathers a variable-length vertex slice from
	// every rank to every rank, concatenated in rank order, alongside
	// the per-rank chunk sizes.
	AllgathervVertices(local []ids.Vertex) (all []ids.Vertex, counts []int)

	// AllgathervEdges is AllgathervVertices' Edge-payload counterpart.
	AllgathervEdges(local []Edge) (all []Edge, counts []int)

	// Broadcast sends value from root to every rank and returns it.
	Broadcast(root ids.Rank, value ids.Vertex) ids.Vertex

	// Barrier blocks until every rank has called Barrier.
	Barrier()
}

// LocalFabric is the synchronous, in-process Fabric: every rank runs on
// its own goroutine inside the same process, and collectives rendezvous
// through a shared World via cyclicBarrier rather than real network I/O.
// This is the "off" / default AsyncVariant of kconfig.Config.
type LocalFabric struct {
	world *World
	rank  ids.Rank
}

// World holds the scratch every LocalFabric rank reads and writes
// during a collective round, plus the barrier that serializes rounds.
// Scratch slices are sized once for WorldSize and reused across the
// entire run.
type World struct {
	barrier *cyclicBarrier

	sumScratch    []int64
	degreeScratch []DegreePivot
	intScratch    []int
	bcastScratch  []ids.Vertex

	vertexMatrix [][][]ids.Vertex // vertexMatrix[sender][dest]
	edgeMatrix   [][][]Edge       // edgeMatrix[sender][dest]
	countMatrix  [][]int          // countMatrix[sender][dest]

	vertexGather [][]ids.Vertex // vertexGather[rank] local contribution
	edgeGather   [][]Edge

	worldSize int
}

// NewLocalWorld allocates the shared state for a worldSize-rank
// in-process run. Call NewFabric(world, rank) once per simulated rank.
func NewLocalWorld(worldSize int) *World {
	kaspanfault.Assertf(worldSize > 0, "world size must be positive, got %d", worldSize)
	w := &World{
		barrier:       newCyclicBarrier(worldSize),
		sumScratch:    make([]int64, worldSize),
		degreeScratch: make([]DegreePivot, worldSize),
		intScratch:    make([]int, worldSize),
		bcastScratch:  make([]ids.Vertex, worldSize),
		vertexMatrix:  make([][][]ids.Vertex, worldSize),
		edgeMatrix:    make([][][]Edge, worldSize),
		countMatrix:   make([][]int, worldSize),
		vertexGather:  make([][]ids.Vertex, worldSize),
		edgeGather:    make([][]Edge, worldSize),
		worldSize:     worldSize,
	}
	return w
}

// NewFabric returns the Fabric view for one rank of world.
func NewFabric(world *World, rank ids.Rank) *LocalFabric {
	kaspanfault.Assertf(rank >= 0 && rank < world.worldSize, "rank %d out of range [0,%d)", rank, world.worldSize)
	return &LocalFabric{world: world, rank: rank}
}

func (f *LocalFabric) Rank() ids.Rank { return f.rank }
func (f *LocalFabric) WorldSize() int { return f.world.worldSize }

func (f *LocalFabric) AllreduceSum(local int64) int64 {
	w := f.world
	w.sumScratch[f.rank] = local
	w.barrier.Await()
	var total int64
	for _, v := range w.sumScratch {
		total += v
	}
	w.barrier.Await()
	return total
}

func (f *LocalFabric) AllreduceMaxDegree(local DegreePivot) DegreePivot {
	w := f.world
	w.degreeScratch[f.rank] = local
	w.barrier.Await()
	best := w.degreeScratch[0]
	for _, v := range w.degreeScratch[1:] {
		best = DegreeMaxReduce(best, v)
	}
	w.barrier.Await()
	return best
}

func (f *LocalFabric) Alltoall(sendCounts []int) []int {
	kaspanfault.Assertf(len(sendCounts) == f.world.worldSize, "send counts length %d != world size %d", len(sendCounts), f.world.worldSize)
	w := f.world
	row := make([]int, w.worldSize)
	copy(row, sendCounts)
	w.countMatrix[f.rank] = row
	w.barrier.Await()
	recvCounts := make([]int, w.worldSize)
	for s := 0; s < w.worldSize; s++ {
		recvCounts[s] = w.countMatrix[s][f.rank]
	}
	w.barrier.Await()
	return recvCounts
}

func (f *LocalFabric) AlltoallVertices(perDest [][]ids.Vertex) []ids.Vertex {
	kaspanfault.Assertf(len(perDest) == f.world.worldSize, "per-destination batches length %d != world size %d", len(perDest), f.world.worldSize)
	w := f.world
	w.vertexMatrix[f.rank] = perDest
	w.barrier.Await()
	var recv []ids.Vertex
	for s := 0; s < w.worldSize; s++ {
		recv = append(recv, w.vertexMatrix[s][f.rank]...)
	}
	w.barrier.Await()
	return recv
}

func (f *LocalFabric) AlltoallEdges(perDest [][]Edge) []Edge {
	kaspanfault.Assertf(len(perDest) == f.world.worldSize, "per-destination batches length %d != world size %d", len(perDest), f.world.worldSize)
	w := f.world
	w.edgeMatrix[f.rank] = perDest
	w.barrier.Await()
	var recv []Edge
	for s := 0; s < w.worldSize; s++ {
		recv = append(recv, w.edgeMatrix[s][f.rank]...)
	}
	w.barrier.Await()
	return recv
}

func (f *LocalFabric) AllgatherInt(local int) []int {
	w := f.world
	w.intScratch[f.rank] = local
	w.barrier.Await()
	out := make([]int, w.worldSize)
	copy(out, w.intScratch)
	w.barrier.Await()
	return out
}

func (f *LocalFabric) AllgathervVertices(local []ids.Vertex) ([]ids.Vertex, []int) {
	w := f.world
	w.vertexGather[f.rank] = local
	w.barrier.Await()
	counts := make([]int, w.worldSize)
	var all []ids.Vertex
	for r := 0; r < w.worldSize; r++ {
		counts[r] = len(w.vertexGather[r])
		all = append(all, w.vertexGather[r]...)
	}
	w.barrier.Await()
	return all, counts
}

func (f *LocalFabric) AllgathervEdges(local []Edge) ([]Edge, []int) {
	w := f.world
	w.edgeGather[f.rank] = local
	w.barrier.Await()
	counts := make([]int, w.worldSize)
	var all []Edge
	for r := 0; r < w.worldSize; r++ {
		counts[r] = len(w.edgeGather[r])
		all = append(all, w.edgeGather[r]...)
	}
	w.barrier.Await()
	return all, counts
}

func (f *LocalFabric) Broadcast(root ids.Rank, value ids.Vertex) ids.Vertex {
	w := f.world
	if f.rank == root {
		w.bcastScratch[root] = value
	}
	w.barrier.Await()
	v := w.bcastScratch[root]
	w.barrier.Await()
	return v
}

func (f *LocalFabric) Barrier() { f.world.barrier.Await() }
