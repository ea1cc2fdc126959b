// Package scc implements the orchestrator: the top-level pipeline that
// sequences degree-1 trim, pivot
// forward-backward decomposition, multi-pivot color propagation, and
// residual gather + serial Tarjan, deciding scc_id for every vertex.
package scc

import (
	"github.com/dreamware/kaspan/internal/color"
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
	"github.com/dreamware/kaspan/internal/kconfig"
	"github.com/dreamware/kaspan/internal/mem"
	"github.com/dreamware/kaspan/internal/pivot"
	"github.com/dreamware/kaspan/internal/residual"
	"github.com/dreamware/kaspan/internal/trim"
)

// Run executes the full pipeline, collectively: every rank must call
// Run with its own partition-local b and the same cfg. Returns scc_id
// for every local vertex, fully decided.
func Run(b *graph.Bipartition, fabric comm.Fabric, cfg kconfig.Config) []ids.Vertex {
	localN := b.Part.LocalN()
	sccID := make([]ids.Vertex, localN)
	for k := range sccID {
		sccID[k] = ids.Undecided
	}
	decided := mem.NewBitVector(int(localN))

	// trim.First's own candidate return is not threaded into pivot.Run:
	// pivot.Run recomputes the argmax over whatever is still undecided
	// at the time it's called, which may differ from what was undecided
	// right after trim if a trim-Tarjan pre-pass ran in between.
	localDecided, _ := trim.First(b, sccID, decided, fabric)
	globalDecided := fabric.AllreduceSum(int64(localDecided))

	if fabric.WorldSize() == 1 {
		residual.Run(b, sccID, decided, fabric)
		normalize(b, sccID, decided)
		canonicalize(b, sccID, fabric)
		return sccID
	}

	n := b.Part.N()
	p := ids.Vertex(fabric.WorldSize())
	decidedThreshold := n - (2*n)/p

	if globalDecided < decidedThreshold {
		result := pivot.Run(b, sccID, decided, fabric)
		step := result.Decided
		if cfg.TrimTarjan {
			step += trimTarjanPrePass(b, sccID, decided)
		}
		step += trim.Normal(b, sccID, decided)
		globalDecided += fabric.AllreduceSum(int64(step))
	}

	rotation := uint(1)
	for globalDecided < decidedThreshold {
		var r uint
		if cfg.LabelRotation {
			r = rotation
		}
		step := color.Run(b, sccID, decided, fabric, r)
		step += trim.Normal(b, sccID, decided)
		step += trim.Normal(b, sccID, decided)

		delta := fabric.AllreduceSum(int64(step))
		kaspanfault.Assertf(delta > 0, "color propagation round made no progress (global_decided stuck at %d/%d)", globalDecided, decidedThreshold)
		globalDecided += delta
		rotation++
	}

	residual.Run(b, sccID, decided, fabric)
	normalize(b, sccID, decided)
	canonicalize(b, sccID, fabric)
	return sccID
}

// normalize assigns any vertex the pipeline left undecided its own
// global id as a singleton SCC. residual.Run is expected to clear
// everything still open before this runs.
func normalize(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector) {
	localN := b.Part.LocalN()
	for k := ids.Vertex(0); k < localN; k++ {
		if !decided.Get(int(k)) {
			sccID[k] = b.Part.ToGlobal(k)
			decided.Set(int(k))
		}
	}
}

// trimTarjanPrePass runs a serial Tarjan restricted to this rank's own
// undecided vertices and their purely local edges, then decides a
// discovered local component only when it has no external active edge
// in at least one direction: with no active edge leaving (or entering)
// the component, no larger SCC can contain it, so it is complete as-is.
// A component with external edges both ways might continue through a
// ghost and is left for pivot/color to settle. More powerful than a
// degree-1 trim, but can be expensive; off by default
// (Config.TrimTarjan).
func trimTarjanPrePass(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector) int {
	localN := b.Part.LocalN()

	var edges []comm.Edge
	for k := ids.Vertex(0); k < localN; k++ {
		if decided.Get(int(k)) {
			continue
		}
		b.Fw.EachNeighbor(k, func(v ids.Vertex) {
			if b.Part.HasLocal(v) && !decided.Get(int(b.Part.ToLocal(v))) {
				edges = append(edges, comm.Edge{U: k, V: b.Part.ToLocal(v)})
			}
		})
	}

	restricted := graph.NewCSR(localN, ids.Index(len(edges)))
	buildLocalCSR(restricted, localN, edges)

	inComponent := mem.NewBitVector(int(localN))
	// externalActive counts edges from members of the component to
	// active vertices outside it: ghosts always count (their status is
	// unknown without an exchange), undecided local non-members count,
	// decided vertices never do.
	externalActive := func(c *graph.CSR, members []ids.Vertex) bool {
		for _, k := range members {
			begin, end := c.Range(k)
			for i := begin; i < end; i++ {
				v := c.Adj[i]
				if !b.Part.HasLocal(v) {
					return true
				}
				lv := b.Part.ToLocal(v)
				if !decided.Get(int(lv)) && !inComponent.Get(int(lv)) {
					return true
				}
			}
		}
		return false
	}

	localDecided := 0
	residual.Tarjan(restricted, localN, func(members []ids.Vertex) {
		// Tarjan also emits components of decided vertices (isolated
		// rows in the restricted CSR); skip them.
		if decided.Get(int(members[0])) {
			return
		}
		for _, k := range members {
			inComponent.Set(int(k))
		}
		closed := !externalActive(b.Fw, members) || !externalActive(b.Bw, members)
		if closed {
			minGlobal := b.Part.ToGlobal(members[0])
			for _, k := range members[1:] {
				if g := b.Part.ToGlobal(k); g < minGlobal {
					minGlobal = g
				}
			}
			for _, k := range members {
				decided.Set(int(k))
				sccID[k] = minGlobal
				localDecided++
			}
		}
		for _, k := range members {
			inComponent.Unset(int(k))
		}
	})
	return localDecided
}

// buildLocalCSR is FromLocalEdges's count-prefix-scatter recipe
// specialized for edges already expressed as local indices (U, V both
// in [0, localN)), which internal/graph's partition-keyed variant
// doesn't directly support.
func buildLocalCSR(c *graph.CSR, localN ids.Vertex, edges []comm.Edge) {
	for _, e := range edges {
		c.Head[e.U+1]++
	}
	for k := ids.Vertex(1); k <= localN; k++ {
		c.Head[k] += c.Head[k-1]
	}
	cursor := make([]ids.Index, localN)
	copy(cursor, c.Head[:localN])
	for _, e := range edges {
		c.Adj[cursor[e.U]] = e.V
		cursor[e.U]++
	}
}
