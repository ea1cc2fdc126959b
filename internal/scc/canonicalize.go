package scc

import (
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
)

// canonicalize rewrites every scc_id onto the minimum global member id
// of its component. Earlier phases use non-minimal representatives
// (pivot FB assigns the pivot's own id; rotated color rounds assign the
// rotated-label winner), so one more small collective at the very end
// remaps every component onto its true minimum member.
//
// Each rank contributes, per representative id it holds locally, the
// minimum global member id it has for that representative; every rank
// then all-gathers every rank's contribution and folds them down to one
// global minimum per representative (identical computation on every
// rank, so no further round-trip is needed), then rewrites its local
// scc_id through that map.
func canonicalize(b *graph.Bipartition, sccID []ids.Vertex, fabric comm.Fabric) {
	localN := b.Part.LocalN()

	localMin := make(map[ids.Vertex]ids.Vertex)
	for k := ids.Vertex(0); k < localN; k++ {
		rep := sccID[k]
		g := b.Part.ToGlobal(k)
		if cur, ok := localMin[rep]; !ok || g < cur {
			localMin[rep] = g
		}
	}

	contribution := make([]comm.Edge, 0, len(localMin))
	for rep, min := range localMin {
		contribution = append(contribution, comm.Edge{U: rep, V: min})
	}

	all, _ := fabric.AllgathervEdges(contribution)

	globalMin := make(map[ids.Vertex]ids.Vertex, len(all))
	for _, e := range all {
		if cur, ok := globalMin[e.U]; !ok || e.V < cur {
			globalMin[e.U] = e.V
		}
	}

	for k := ids.Vertex(0); k < localN; k++ {
		sccID[k] = globalMin[sccID[k]]
	}
}
