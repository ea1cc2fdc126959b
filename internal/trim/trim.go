// Package trim implements degree-1 trimming: deciding every vertex
// with no in-edge or no out-edge in the active (undecided)
// subgraph as a singleton SCC. Two variants are provided: First, the
// full frontier-cascading pass run once at startup, and Normal, the
// cheap single-pass recompute run between later phases.
package trim

import (
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/mem"
)

// Two side tags for the cross-rank decrement message routed through an
// EdgeExchange (comm.Edge is reused as {target vertex, side} rather than
// adding a third payload type to the closed Fabric alltoall set).
const (
	sideIndegree  ids.Vertex = 0 // a fw edge into the target vertex was removed
	sideOutdegree ids.Vertex = 1 // a bw edge into the target vertex (i.e. a fw edge out of it) was removed
)

// State holds the residual-degree bookkeeping First needs to cascade a
// decision through the active subgraph. Normal does not need it.
type State struct {
	residualOut []ids.Index
	residualIn  []ids.Index
}

// NewState precomputes the initial residual degrees from b's CSR.
func NewState(b *graph.Bipartition) *State {
	localN := b.Part.LocalN()
	s := &State{
		residualOut: make([]ids.Index, localN),
		residualIn:  make([]ids.Index, localN),
	}
	for k := ids.Vertex(0); k < localN; k++ {
		s.residualOut[k] = b.Fw.Degree(k)
		s.residualIn[k] = b.Bw.Degree(k)
	}
	return s
}

// First runs the full frontier-cascading trim pass once, on the whole
// graph. It decides every vertex transitively reachable
// from a zero in/out-degree seed, across all ranks, pushing decrements
// along both fw and bw edges in every round until the global frontier
// is empty. Returns the
// count of vertices decided by the calling rank and a candidate pivot
// (max out*in degree product among vertices still undecided locally,
// for the caller to fold into a global AllreduceMaxDegree).
func First(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector, fabric comm.Fabric) (localDecided int, candidate comm.DegreePivot) {
	s := NewState(b)
	localN := b.Part.LocalN()
	ex := comm.NewEdgeExchange(fabric)

	var queue []ids.Vertex // local indices pending cascade
	decide := func(k ids.Vertex) {
		if decided.Get(int(k)) {
			return
		}
		decided.Set(int(k))
		sccID[k] = b.Part.ToGlobal(k)
		localDecided++
		queue = append(queue, k)
	}

	for k := ids.Vertex(0); k < localN; k++ {
		if s.residualOut[k] == 0 || s.residualIn[k] == 0 {
			decide(k)
		}
	}

	drainLocal := func() {
		for len(queue) > 0 {
			k := queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			b.Fw.EachNeighbor(k, func(v ids.Vertex) {
				applyDecrement(b, s, decided, ex, v, sideIndegree, decide)
			})
			b.Bw.EachNeighbor(k, func(u ids.Vertex) {
				applyDecrement(b, s, decided, ex, u, sideOutdegree, decide)
			})
		}
	}
	drainLocal()

	for ex.Comm() {
		for ex.HasNext() {
			e := ex.Next()
			k := b.Part.ToLocal(e.U)
			applyLocalDecrement(s, decided, e.V, k, decide)
		}
		drainLocal()
	}

	candidate = bestCandidate(b, decided)
	return localDecided, candidate
}

// applyDecrement routes a decrement for target (which may be local or a
// ghost owned by another rank) through the EdgeExchange when remote, or
// applies it directly when local.
func applyDecrement(b *graph.Bipartition, s *State, decided *mem.BitVector, ex *comm.EdgeExchange, target, side ids.Vertex, decide func(ids.Vertex)) {
	if b.Part.HasLocal(target) {
		applyLocalDecrement(s, decided, side, b.Part.ToLocal(target), decide)
		return
	}
	ex.Push(b.Part.WorldRankOf(target), comm.Edge{U: target, V: side})
}

func applyLocalDecrement(s *State, decided *mem.BitVector, side, k ids.Vertex, decide func(ids.Vertex)) {
	if decided.Get(int(k)) {
		return
	}
	if side == sideIndegree {
		s.residualIn[k]--
		if s.residualIn[k] == 0 {
			decide(k)
		}
		return
	}
	s.residualOut[k]--
	if s.residualOut[k] == 0 {
		decide(k)
	}
}

func bestCandidate(b *graph.Bipartition, decided *mem.BitVector) comm.DegreePivot {
	best := comm.DegreePivot{Product: -1, Vertex: ids.Undecided}
	localN := b.Part.LocalN()
	for k := ids.Vertex(0); k < localN; k++ {
		if decided.Get(int(k)) {
			continue
		}
		product := b.Fw.Degree(k) * b.Bw.Degree(k)
		cand := comm.DegreePivot{Product: product, Vertex: b.Part.ToGlobal(k)}
		best = comm.DegreeMaxReduce(best, cand)
	}
	return best
}

// Normal runs the cheap single-pass trim between later phases: for
// each still-undecided local vertex, recompute its in/out
// degree counting only still-undecided local neighbors (ghosts are
// counted as active, since their status isn't known without another
// exchange, which this variant deliberately avoids) and decide if
// either side is empty. Returns the count of vertices decided by the
// calling rank.
func Normal(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector) int {
	localDecided := 0
	localN := b.Part.LocalN()
	for k := ids.Vertex(0); k < localN; k++ {
		if decided.Get(int(k)) {
			continue
		}
		outActive := activeDegree(b, b.Fw, k, decided)
		inActive := activeDegree(b, b.Bw, k, decided)
		if outActive == 0 || inActive == 0 {
			sccID[k] = b.Part.ToGlobal(k)
			decided.Set(int(k))
			localDecided++
		}
	}
	return localDecided
}

func activeDegree(b *graph.Bipartition, c *graph.CSR, k ids.Vertex, decided *mem.BitVector) ids.Index {
	var active ids.Index
	c.EachNeighbor(k, func(v ids.Vertex) {
		if !b.Part.HasLocal(v) || !decided.Get(int(b.Part.ToLocal(v))) {
			active++
		}
	})
	return active
}
