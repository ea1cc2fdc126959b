package graph

import (
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/part"
)

// FromLocalEdges builds the forward CSR for p's locally owned vertices
// from a flat list of (u, v) global edges where every u is owned
// locally. Neighbors may be ghosts (global ids owned by another rank);
// they are stored as-is, never resolved.
//
// Count-prefix-scatter construction: zero head, count out-degrees into
// head[k+1], exclusive-prefix-sum in place, then stream edges writing
// into the row's current scatter cursor.
func FromLocalEdges(p part.Part, edges []comm.Edge) *CSR {
	localN := p.LocalN()
	c := NewCSR(localN, ids.Index(len(edges)))

	for _, e := range edges {
		k := p.ToLocal(e.U)
		c.Head[k+1]++
	}
	for k := ids.Vertex(1); k <= localN; k++ {
		c.Head[k] += c.Head[k-1]
	}
	cursor := make([]ids.Index, localN)
	copy(cursor, c.Head[:localN])
	for _, e := range edges {
		k := p.ToLocal(e.U)
		c.Adj[cursor[k]] = e.V
		cursor[k]++
	}
	return c
}
