package graph

import (
	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/part"
)

// TransposeLocal builds the backward CSR directly from fw without going
// through the network. Valid only when p's whole vertex range is
// locally owned (world size 1).
func TransposeLocal(p part.Part, fw *CSR) *CSR {
	edges := make([]comm.Edge, 0, len(fw.Adj))
	fw.EachEdge(func(k, v ids.Vertex) {
		edges = append(edges, comm.Edge{U: v, V: p.ToGlobal(k)})
	})
	return FromLocalEdges(p, edges)
}

// TransposeDistributed builds the backward CSR from fw across an
// arbitrary number of ranks: every forward edge (u, v) is repackaged
// as {dest: world_rank_of(v),
// payload: (v, u)} ("v's backward neighbor is u") routed to v's owner
// through one AlltoallEdges round, then assembled into a CSR by the
// same count-prefix-scatter recipe FromLocalEdges uses for the forward
// direction.
func TransposeDistributed(p part.Part, fw *CSR, fabric comm.Fabric) *CSR {
	perDest := make([][]comm.Edge, fabric.WorldSize())
	fw.EachEdge(func(k, v ids.Vertex) {
		u := p.ToGlobal(k)
		dest := p.WorldRankOf(v)
		perDest[dest] = append(perDest[dest], comm.Edge{U: v, V: u})
	})
	received := fabric.AlltoallEdges(perDest)
	return FromLocalEdges(p, received)
}
