// Package comm implements the frontier exchange primitive and the small
// collective facade every phase of the pipeline communicates through.
// Two Fabric implementations are provided: a synchronous in-process
// LocalFabric (the default, one goroutine per rank) and a networked
// HTTPFabric (one process per rank, reachable by address).
package comm

import "github.com/dreamware/kaspan/internal/ids"

// Edge is the {u, v} payload used by color propagation's border
// exchange and the distributed transpose.
type Edge struct {
	U ids.Vertex
	V ids.Vertex
}

// DegreePivot is the {degree product, vertex} pair pivot selection
// reduces over: the winner is the undecided vertex maximizing
// outdegree*indegree across all ranks.
type DegreePivot struct {
	Product ids.Index
	Vertex  ids.Vertex
}

// DegreeMaxReduce is the reduction combiner for pivot selection: max by
// product, tiebreak by larger vertex id. Every rank must apply the same
// combiner in the same order for the reduction to be deterministic.
func DegreeMaxReduce(a, b DegreePivot) DegreePivot {
	if a.Product > b.Product {
		return a
	}
	if b.Product > a.Product {
		return b
	}
	if a.Vertex > b.Vertex {
		return a
	}
	return b
}
