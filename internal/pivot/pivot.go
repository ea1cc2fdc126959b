// Package pivot implements forward-backward pivot decomposition: pick
// a high-degree undecided vertex, compute its
// forward- and backward-reachable sets via distributed level-
// synchronous BFS, and settle their intersection as one SCC.
package pivot

import (
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/mem"
)

// Result reports the pivot chosen and how many vertices the calling
// rank decided as members of its SCC.
type Result struct {
	Pivot   ids.Vertex
	Decided int
}

// Run executes one full pivot decomposition round: select a pivot,
// forward-BFS from it, then backward-BFS restricted to the forward set,
// deciding scc_id[v] = pivot for every v in the intersection. Every rank
// must call Run collectively.
func Run(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector, fabric comm.Fabric) Result {
	pivotCandidate := selectPivot(b, decided)
	pivot := fabric.AllreduceMaxDegree(pivotCandidate).Vertex

	fwReached := forwardBFS(b, pivot, decided, fabric)
	localDecided := backwardBFS(b, pivot, decided, fwReached, sccID, fabric)

	return Result{Pivot: pivot, Decided: localDecided}
}

// selectPivot computes this rank's candidate for the global max-product
// reduction: argmax outdegree*indegree among still-undecided vertices,
// tiebroken by comm.DegreeMaxReduce.
func selectPivot(b *graph.Bipartition, decided *mem.BitVector) comm.DegreePivot {
	best := comm.DegreePivot{Product: -1, Vertex: ids.Undecided}
	localN := b.Part.LocalN()
	for k := ids.Vertex(0); k < localN; k++ {
		if decided.Get(int(k)) {
			continue
		}
		product := b.Fw.Degree(k) * b.Bw.Degree(k)
		best = comm.DegreeMaxReduce(best, comm.DegreePivot{Product: product, Vertex: b.Part.ToGlobal(k)})
	}
	return best
}

// forwardBFS computes F: the set of undecided vertices reachable from
// pivot along fw edges, level-synchronously across ranks via a
// VertexExchange. Returns a bit vector over local indices.
func forwardBFS(b *graph.Bipartition, pivot ids.Vertex, decided *mem.BitVector, fabric comm.Fabric) *mem.BitVector {
	localN := int(b.Part.LocalN())
	reached := mem.NewBitVector(localN)
	ex := comm.NewVertexExchange(fabric)

	var stack []ids.Vertex
	if b.Part.HasLocal(pivot) {
		k := b.Part.ToLocal(pivot)
		if !decided.Get(int(k)) {
			reached.Set(int(k))
			stack = append(stack, k)
		}
	}

	drain := func() {
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			b.Fw.EachNeighbor(k, func(v ids.Vertex) {
				if b.Part.HasLocal(v) {
					lv := b.Part.ToLocal(v)
					if !decided.Get(int(lv)) && !reached.Get(int(lv)) {
						reached.Set(int(lv))
						stack = append(stack, lv)
					}
					return
				}
				ex.Push(b.Part.WorldRankOf(v), v)
			})
		}
	}
	drain()

	for ex.Comm() {
		for ex.HasNext() {
			v := ex.Next()
			k := b.Part.ToLocal(v)
			if !decided.Get(int(k)) && !reached.Get(int(k)) {
				reached.Set(int(k))
				stack = append(stack, k)
			}
		}
		drain()
	}
	return reached
}

// backwardBFS computes B restricted to F by only ever expanding the bw
// frontier into vertices fwReached already marks, and decides
// scc_id[v] = pivot for every vertex it settles. Any backward path from
// the pivot to a member of F stays inside F, so the restriction loses
// nothing. Returns the count of vertices the calling rank decided.
func backwardBFS(b *graph.Bipartition, pivot ids.Vertex, decided *mem.BitVector, fwReached *mem.BitVector, sccID []ids.Vertex, fabric comm.Fabric) int {
	localN := int(b.Part.LocalN())
	bwReached := mem.NewBitVector(localN)
	ex := comm.NewVertexExchange(fabric)
	localDecided := 0

	decideIfNeeded := func(k ids.Vertex) {
		if decided.Get(int(k)) {
			return
		}
		sccID[k] = pivot
		decided.Set(int(k))
		localDecided++
	}

	var stack []ids.Vertex
	settle := func(k ids.Vertex) {
		bwReached.Set(int(k))
		stack = append(stack, k)
		decideIfNeeded(k)
	}

	if b.Part.HasLocal(pivot) {
		k := b.Part.ToLocal(pivot)
		if fwReached.Get(int(k)) && !bwReached.Get(int(k)) {
			settle(k)
		}
	}

	drain := func() {
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			b.Bw.EachNeighbor(k, func(u ids.Vertex) {
				if b.Part.HasLocal(u) {
					lu := b.Part.ToLocal(u)
					if fwReached.Get(int(lu)) && !bwReached.Get(int(lu)) {
						settle(lu)
					}
					return
				}
				ex.Push(b.Part.WorldRankOf(u), u)
			})
		}
	}
	drain()

	for ex.Comm() {
		for ex.HasNext() {
			u := ex.Next()
			lu := b.Part.ToLocal(u)
			if fwReached.Get(int(lu)) && !bwReached.Get(int(lu)) {
				settle(lu)
			}
		}
		drain()
	}
	return localDecided
}
