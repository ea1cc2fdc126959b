// Package graph implements the distributed bi-directional CSR graph
// partition: random access to forward and backward neighbors by local
// vertex index, plus the backward-complement transpose.
package graph

import (
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
	"github.com/dreamware/kaspan/internal/part"
)

// CSR is one direction (forward or backward) of a partition-local
// compressed-sparse-row adjacency. Row k's neighbors are
// Adj[Head[k]:Head[k+1]]; neighbors may be global ids owned by another
// rank (ghosts) and are never themselves stored as a local CSR row.
type CSR struct {
	Head []ids.Index  // length LocalN+1, non-decreasing
	Adj  []ids.Vertex // length Head[LocalN], global neighbor ids
}

// NewCSR preallocates a CSR for localN rows and m edge slots. Callers
// that build incrementally (see FromLocalEdges) still go through this so the
// zero-row convention (Head[0] == 0) holds from the start.
func NewCSR(localN ids.Vertex, m ids.Index) *CSR {
	return &CSR{
		Head: make([]ids.Index, localN+1),
		Adj:  make([]ids.Vertex, m),
	}
}

// Range returns the [begin, end) slice bounds into Adj for local row k.
func (c *CSR) Range(k ids.Vertex) (begin, end ids.Index) {
	return c.Head[k], c.Head[k+1]
}

// Degree returns the number of neighbors local row k has.
func (c *CSR) Degree(k ids.Vertex) ids.Index {
	return c.Head[k+1] - c.Head[k]
}

// EachNeighbor calls fn once per neighbor of local row k, in CSR order.
func (c *CSR) EachNeighbor(k ids.Vertex, fn func(v ids.Vertex)) {
	begin, end := c.Range(k)
	for i := begin; i < end; i++ {
		fn(c.Adj[i])
	}
}

// EachEdge calls fn once per (local row, neighbor) pair in the whole
// CSR, in row-major order.
func (c *CSR) EachEdge(fn func(k ids.Vertex, v ids.Vertex)) {
	localN := ids.Vertex(len(c.Head) - 1)
	for k := ids.Vertex(0); k < localN; k++ {
		c.EachNeighbor(k, func(v ids.Vertex) { fn(k, v) })
	}
}

// Bipartition bundles both CSR directions for one partition-local
// subgraph, plus the partition that maps local indices to global ids.
// This is the handle every phase (trim, pivot, color, residual) takes
// as its graph argument.
type Bipartition struct {
	Part part.Part
	Fw   *CSR
	Bw   *CSR
}

// Outdegree returns local row k's forward neighbor count.
func (b *Bipartition) Outdegree(k ids.Vertex) ids.Index { return b.Fw.Degree(k) }

// Indegree returns local row k's backward neighbor count.
func (b *Bipartition) Indegree(k ids.Vertex) ids.Index { return b.Bw.Degree(k) }

// checkMonotone asserts the CSR invariant: head is non-decreasing and
// every adjacency entry is a valid global vertex id.
func checkMonotone(c *CSR, n ids.Vertex) {
	for i := 1; i < len(c.Head); i++ {
		kaspanfault.Assertf(c.Head[i] >= c.Head[i-1], "CSR head not non-decreasing at row %d: %d < %d", i, c.Head[i], c.Head[i-1])
	}
	for _, v := range c.Adj {
		kaspanfault.Assertf(v >= 0 && v < n, "CSR adjacency entry %d out of range [0,%d)", v, n)
	}
}

// Check validates both directions of b against the partition's n.
func (b *Bipartition) Check() {
	checkMonotone(b.Fw, b.Part.N())
	checkMonotone(b.Bw, b.Part.N())
}
