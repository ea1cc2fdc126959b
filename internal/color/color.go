// Package color implements multi-pivot color propagation: one
// propagation round that discovers at least one SCC per weakly
// connected component of the undecided subgraph, rather than peeling
// off a single SCC per pivot the way internal/pivot does.
package color

import (
	"math/bits"

	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/mem"
	"github.com/dreamware/kaspan/internal/part"
)

// Run executes one color propagation round: forward min-label
// propagation to a fixpoint (Phase A), then backward pivot selection
// and propagation (Phase B). rotation bit-rotates the labels so a
// different vertex wins the label race each outer round; pass 0 to
// disable it.
// Returns the count of vertices the calling rank decided.
func Run(b *graph.Bipartition, sccID []ids.Vertex, decided *mem.BitVector, fabric comm.Fabric, rotation uint) int {
	localN := int(b.Part.LocalN())
	label := make([]ids.Vertex, localN)
	inActive := mem.NewBitVector(localN)
	hasChanged := mem.NewBitVector(localN)

	mapFn := rotateRight(rotation)
	unmapFn := rotateLeft(rotation)

	// Phase A: forward min-label propagation. Every undecided vertex
	// starts labeled with its own (rotated) global id and adopts the
	// smallest label it sees over fw edges.
	// Every undecided vertex counts as changed for the first border
	// push: a border vertex whose label survives the local fixpoint
	// still has to offer it to its remote neighbors once.
	var active []ids.Vertex
	for k := 0; k < localN; k++ {
		if !decided.Get(k) {
			label[k] = mapFn(b.Part.ToGlobal(ids.Vertex(k)))
			inActive.Set(k)
			hasChanged.Set(k)
			active = append(active, ids.Vertex(k))
		}
	}

	fwEx := comm.NewEdgeExchange(fabric)
	fwUpdate := func(lv, candidate ids.Vertex) bool {
		if decided.Get(int(lv)) || candidate >= label[lv] {
			return false
		}
		label[lv] = candidate
		return true
	}
	fwPass := &propagator{
		part: b.Part, csr: b.Fw, label: label,
		inActive: inActive, hasChanged: hasChanged, active: active,
		mapFn: mapFn, ex: fwEx, onLocalUpdate: fwUpdate,
	}
	fwPass.run(localN)

	// Phase B: backward pivot selection + propagation. A vertex is a
	// pivot iff its settled forward label equals its own mapped id (it
	// is the minimum in its forward-reachable component).
	inActive.Clear(localN)
	hasChanged.Clear(localN)
	active = active[:0]
	localDecided := 0

	for k := 0; k < localN; k++ {
		if decided.Get(k) {
			continue
		}
		if label[k] == mapFn(b.Part.ToGlobal(ids.Vertex(k))) {
			decided.Set(k)
			sccID[k] = unmapFn(label[k])
			localDecided++
			inActive.Set(k)
			hasChanged.Set(k)
			active = append(active, ids.Vertex(k))
		}
	}

	bwEx := comm.NewEdgeExchange(fabric)
	bwUpdate := func(lv, candidate ids.Vertex) bool {
		if decided.Get(int(lv)) || label[lv] != candidate {
			return false
		}
		decided.Set(int(lv))
		sccID[lv] = unmapFn(candidate)
		localDecided++
		return true
	}
	bwPass := &propagator{
		part: b.Part, csr: b.Bw, label: label,
		inActive: inActive, hasChanged: hasChanged, active: active,
		mapFn: mapFn, ex: bwEx, onLocalUpdate: bwUpdate,
	}
	bwPass.run(localN)

	return localDecided
}

// rotateRight(0) and rotateLeft(0) are the identity map: rotation 0 is
// the plain, unrotated label search.
func rotateRight(r uint) func(ids.Vertex) ids.Vertex {
	if r == 0 {
		return func(l ids.Vertex) ids.Vertex { return l }
	}
	return func(l ids.Vertex) ids.Vertex { return ids.Vertex(bits.RotateLeft64(uint64(l), -int(r))) }
}

func rotateLeft(r uint) func(ids.Vertex) ids.Vertex {
	if r == 0 {
		return func(l ids.Vertex) ids.Vertex { return l }
	}
	return func(l ids.Vertex) ids.Vertex { return ids.Vertex(bits.RotateLeft64(uint64(l), int(r))) }
}

// propagator is the stack-drain / border-push / exchange loop shared by
// both phases: the only difference between a forward and a backward
// pass is which CSR direction it walks and what onLocalUpdate does with
// a candidate label (adopt the minimum vs. confirm an exact match).
type propagator struct {
	part          part.Part
	csr           *graph.CSR
	label         []ids.Vertex
	inActive      *mem.BitVector
	hasChanged    *mem.BitVector
	active        []ids.Vertex
	mapFn         func(ids.Vertex) ids.Vertex
	ex            *comm.EdgeExchange
	onLocalUpdate func(lv, candidate ids.Vertex) bool
}

func (pr *propagator) activate(lv ids.Vertex) {
	if pr.inActive.Get(int(lv)) {
		return
	}
	pr.inActive.Set(int(lv))
	pr.active = append(pr.active, lv)
	pr.hasChanged.Set(int(lv))
}

func (pr *propagator) drain() {
	for len(pr.active) > 0 {
		k := pr.active[len(pr.active)-1]
		pr.active = pr.active[:len(pr.active)-1]
		labelK := pr.label[k]
		pr.csr.EachNeighbor(k, func(v ids.Vertex) {
			if pr.part.HasLocal(v) && labelK < pr.mapFn(v) {
				lv := pr.part.ToLocal(v)
				if pr.onLocalUpdate(lv, labelK) {
					pr.activate(lv)
				}
			}
		})
		pr.inActive.Unset(int(k))
	}
}

func (pr *propagator) pushBorder(localN int) {
	pr.hasChanged.ForEach(localN, func(ki int) {
		k := ids.Vertex(ki)
		labelK := pr.label[k]
		pr.csr.EachNeighbor(k, func(v ids.Vertex) {
			if !pr.part.HasLocal(v) && labelK < pr.mapFn(v) {
				pr.ex.Push(pr.part.WorldRankOf(v), comm.Edge{U: v, V: labelK})
			}
		})
	})
	pr.hasChanged.Clear(localN)
}

func (pr *propagator) run(localN int) {
	pr.drain()
	for {
		pr.pushBorder(localN)
		if !pr.ex.Comm() {
			return
		}
		for pr.ex.HasNext() {
			e := pr.ex.Next()
			lv := pr.part.ToLocal(e.U)
			if pr.onLocalUpdate(lv, e.V) {
				pr.activate(lv)
			}
		}
		pr.drain()
	}
}
