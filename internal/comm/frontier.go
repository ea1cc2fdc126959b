package comm

import (
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/part"
)

// FrontierExchange is the rank-partitioned outbox / local inbox /
// termination-detecting exchange primitive. BFS (pivot FB) and label
// propagation (color) both drive their cross-rank traffic through one
// of these, parameterized by payload type.
//
// Ordering guarantee: within one Comm() round, payloads pushed from
// rank A to rank B appear in A's insertion order in B's inbox. Across
// rounds, no ordering is guaranteed.
type FrontierExchange[T any] struct {
	fabric   Fabric
	exchange func(Fabric, [][]T) []T

	outbox   [][]T // outbox[destRank]
	inbox    []T   // consumed LIFO by Next()
	totalOut int
}

func newFrontierExchange[T any](fabric Fabric, exchange func(Fabric, [][]T) []T) *FrontierExchange[T] {
	return &FrontierExchange[T]{
		fabric:   fabric,
		exchange: exchange,
		outbox:   make([][]T, fabric.WorldSize()),
	}
}

// Push appends payload to the outbox bound for rank.
func (fx *FrontierExchange[T]) Push(rank ids.Rank, payload T) {
	fx.outbox[rank] = append(fx.outbox[rank], payload)
	fx.totalOut++
}

// LocalPush appends payload directly to the inbox, bypassing the
// network. Used when a BFS/propagation step discovers a self-targeted
// message.
func (fx *FrontierExchange[T]) LocalPush(payload T) {
	fx.inbox = append(fx.inbox, payload)
}

// HasNext reports whether the inbox has unconsumed payloads.
func (fx *FrontierExchange[T]) HasNext() bool { return len(fx.inbox) > 0 }

// Next pops the most recently delivered payload.
func (fx *FrontierExchange[T]) Next() T {
	n := len(fx.inbox) - 1
	v := fx.inbox[n]
	fx.inbox = fx.inbox[:n]
	return v
}

// Comm performs one global exchange round:
//  1. all-reduce-sum the total outbox size; if zero, every rank is done
//     and nothing is sent; return false.
//  2. exchange the rank-bucketed outbox (the per-rank counts travel with
//     the variable-length exchange itself; Push already bucketed by
//     destination, so no separate partitioning step is needed).
//  3. append received payloads to the inbox, reset the outbox, return
//     true.
func (fx *FrontierExchange[T]) Comm() bool {
	total := fx.fabric.AllreduceSum(int64(fx.totalOut))
	if total == 0 {
		return false
	}
	recv := fx.exchange(fx.fabric, fx.outbox)
	fx.inbox = append(fx.inbox, recv...)
	for i := range fx.outbox {
		fx.outbox[i] = fx.outbox[i][:0]
	}
	fx.totalOut = 0
	return true
}

// VertexExchange is the BFS-frontier specialization of FrontierExchange.
type VertexExchange = FrontierExchange[ids.Vertex]

// NewVertexExchange allocates a vertex-payload exchange.
func NewVertexExchange(fabric Fabric) *VertexExchange {
	return newFrontierExchange(fabric, Fabric.AlltoallVertices)
}

// EdgeExchange is the label-propagation specialization of
// FrontierExchange.
type EdgeExchange = FrontierExchange[Edge]

// NewEdgeExchange allocates an edge-payload exchange.
func NewEdgeExchange(fabric Fabric) *EdgeExchange {
	return newFrontierExchange(fabric, Fabric.AlltoallEdges)
}

// PartRankOf is a convenience re-export so callers pushing a frontier
// message don't need to import part directly just to resolve an owner
// rank from a global vertex id.
func PartRankOf(p part.Part, v ids.Vertex) ids.Rank { return p.WorldRankOf(v) }
