// Package residual implements the residual gather + serial Tarjan
// phase: once the undecided vertex count is small enough
// to fit in memory on every rank, replicate the induced undecided
// subgraph everywhere and finish with a serial Tarjan pass instead of
// further distributed rounds.
package residual

import (
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/mem"
	"github.com/dreamware/kaspan/internal/part"
)

// Run gathers the undecided induced subgraph onto every rank and
// settles it with a serial Tarjan pass. Returns the count of vertices
// the calling rank decided.
func Run(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector, fabric comm.Fabric) int {
	localN := int(b.Part.LocalN())

	var localUndecided []ids.Vertex
	for k := 0; k < localN; k++ {
		if !decided.Get(k) {
			localUndecided = append(localUndecided, b.Part.ToGlobal(ids.Vertex(k)))
		}
	}

	// Every rank all-gathers the full undecided set. The concatenation
	// order (ascending sender rank, per comm.Fabric's contract) is
	// identical on every rank, so assigning dense sub-ids by position in
	// that concatenation, rather than shipping a second round of dense
	// ids, already gives every rank the same sub<->global mapping.
	subToGlobal, _ := fabric.AllgathervVertices(localUndecided)

	undecidedSet := mem.NewIDMap(len(subToGlobal))
	for _, g := range subToGlobal {
		undecidedSet.Insert(g)
	}

	// Build this rank's contribution to the sub-CSR edge list: fw edges
	// whose source is a locally owned undecided vertex and whose target
	// is also undecided, checked against the local decided bit vector
	// when the target is local (cheap), or the hashed undecided set
	// otherwise.
	var localSubEdges []comm.Edge
	for k := 0; k < localN; k++ {
		if decided.Get(k) {
			continue
		}
		u := b.Part.ToGlobal(ids.Vertex(k))
		subU := undecidedSet.Get(u)
		b.Fw.EachNeighbor(ids.Vertex(k), func(v ids.Vertex) {
			var targetUndecided bool
			if b.Part.HasLocal(v) {
				targetUndecided = !decided.Get(int(b.Part.ToLocal(v)))
			} else {
				targetUndecided = undecidedSet.Contains(v)
			}
			if targetUndecided {
				localSubEdges = append(localSubEdges, comm.Edge{U: subU, V: undecidedSet.Get(v)})
			}
		})
	}

	allSubEdges, _ := fabric.AllgathervEdges(localSubEdges)

	subN := ids.Vertex(len(subToGlobal))
	subPart := part.NewTrivialSlice(subN, 0, 1)
	subCSR := graph.FromLocalEdges(subPart, allSubEdges)

	localDecided := 0
	Tarjan(subCSR, subN, func(members []ids.Vertex) {
		minSuper := subToGlobal[members[0]]
		for _, sub := range members[1:] {
			if g := subToGlobal[sub]; g < minSuper {
				minSuper = g
			}
		}
		for _, sub := range members {
			global := subToGlobal[sub]
			if b.Part.HasLocal(global) {
				k := int(b.Part.ToLocal(global))
				if !decided.Get(k) {
					decided.Set(k)
					sccID[k] = minSuper
					localDecided++
				}
			}
		}
	})

	return localDecided
}
