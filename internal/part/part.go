// Package part implements the partition model: the bijection between
// global vertex ids and (rank, local index) pairs that every other kaspan
// component builds on.
//
// Two realized variants are continuous and ordered, TrivialSlice and
// BalancedSlice. Cyclic and BlockCyclic are not continuous and fall back
// to a cached per-rank lookup table (see table.go).
package part

import (
	"fmt"

	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
)

// Part describes how the global vertex range [0, n) is split across
// world_size ranks. Implementations must satisfy:
//
//	to_local(to_global(k)) == k
//	has_local(v) <=> world_rank_of(v) == self_rank
//	{to_global(k) : 0 <= k < local_n} is a disjoint cover of [0, n) across ranks
type Part interface {
	// N returns the total vertex count n.
	N() ids.Vertex

	// LocalN returns the number of vertices owned by the calling rank.
	LocalN() ids.Vertex

	// Rank returns the calling rank's index.
	Rank() ids.Rank

	// WorldSize returns the number of ranks P.
	WorldSize() int

	// ToLocal maps a global vertex id owned by this rank to its local
	// index. Panics (kaspanfault) if v is not owned locally.
	ToLocal(v ids.Vertex) ids.Vertex

	// ToGlobal maps a local index in [0, LocalN()) to its global id.
	ToGlobal(k ids.Vertex) ids.Vertex

	// HasLocal reports whether v is owned by the calling rank.
	HasLocal(v ids.Vertex) bool

	// WorldRankOf returns the owning rank of global vertex v.
	WorldRankOf(v ids.Vertex) ids.Rank

	// Continuous reports whether this rank's vertex set is a contiguous
	// [begin, end) range of the global id space.
	Continuous() bool

	// View returns the [begin, end) range owned by rank r, valid only
	// when Continuous() is true for the partition as a whole.
	View(r ids.Rank) (begin, end ids.Vertex)
}

// TrivialSlice splits [0, n) into world_size contiguous blocks of equal
// width except possibly the last, which absorbs the remainder.
type TrivialSlice struct {
	n         ids.Vertex
	rank      ids.Rank
	worldSize int
	width     ids.Vertex
}

// NewTrivialSlice builds the trivial-slice partition for rank out of
// worldSize ranks over n vertices.
func NewTrivialSlice(n ids.Vertex, rank ids.Rank, worldSize int) *TrivialSlice {
	kaspanfault.Assertf(worldSize > 0, "world size must be positive, got %d", worldSize)
	kaspanfault.Assertf(rank >= 0 && rank < worldSize, "rank %d out of range [0,%d)", rank, worldSize)
	width := n / ids.Vertex(worldSize)
	return &TrivialSlice{n: n, rank: rank, worldSize: worldSize, width: width}
}

func (p *TrivialSlice) N() ids.Vertex    { return p.n }
func (p *TrivialSlice) Rank() ids.Rank   { return p.rank }
func (p *TrivialSlice) WorldSize() int   { return p.worldSize }
func (p *TrivialSlice) Continuous() bool { return true }

func (p *TrivialSlice) View(r ids.Rank) (begin, end ids.Vertex) {
	begin = ids.Vertex(r) * p.width
	if r == p.worldSize-1 {
		end = p.n
	} else {
		end = begin + p.width
	}
	return begin, end
}

func (p *TrivialSlice) LocalN() ids.Vertex {
	begin, end := p.View(p.rank)
	return end - begin
}

func (p *TrivialSlice) ToLocal(v ids.Vertex) ids.Vertex {
	begin, end := p.View(p.rank)
	kaspanfault.Assertf(v >= begin && v < end, "vertex %d not owned by rank %d (range [%d,%d))", v, p.rank, begin, end)
	return v - begin
}

func (p *TrivialSlice) ToGlobal(k ids.Vertex) ids.Vertex {
	begin, end := p.View(p.rank)
	kaspanfault.Assertf(k >= 0 && k < end-begin, "local index %d out of range [0,%d)", k, end-begin)
	return begin + k
}

func (p *TrivialSlice) HasLocal(v ids.Vertex) bool {
	begin, end := p.View(p.rank)
	return v >= begin && v < end
}

func (p *TrivialSlice) WorldRankOf(v ids.Vertex) ids.Rank {
	kaspanfault.Assertf(v >= 0 && v < p.n, "vertex %d out of range [0,%d)", v, p.n)
	if p.width == 0 {
		return p.worldSize - 1
	}
	r := ids.Rank(v / p.width)
	if r >= p.worldSize {
		r = p.worldSize - 1
	}
	return r
}

// BalancedSlice splits [0, n) into world_size contiguous blocks sized so
// |local_n_r - n/P| <= 1: the first (n mod P) ranks own one extra vertex.
type BalancedSlice struct {
	n         ids.Vertex
	rank      ids.Rank
	worldSize int
	base      ids.Vertex
	remainder ids.Vertex
}

// NewBalancedSlice builds the balanced-slice partition for rank out of
// worldSize ranks over n vertices.
func NewBalancedSlice(n ids.Vertex, rank ids.Rank, worldSize int) *BalancedSlice {
	kaspanfault.Assertf(worldSize > 0, "world size must be positive, got %d", worldSize)
	kaspanfault.Assertf(rank >= 0 && rank < worldSize, "rank %d out of range [0,%d)", rank, worldSize)
	return &BalancedSlice{
		n:         n,
		rank:      rank,
		worldSize: worldSize,
		base:      n / ids.Vertex(worldSize),
		remainder: n % ids.Vertex(worldSize),
	}
}

func (p *BalancedSlice) N() ids.Vertex    { return p.n }
func (p *BalancedSlice) Rank() ids.Rank   { return p.rank }
func (p *BalancedSlice) WorldSize() int   { return p.worldSize }
func (p *BalancedSlice) Continuous() bool { return true }

func (p *BalancedSlice) View(r ids.Rank) (begin, end ids.Vertex) {
	rv := ids.Vertex(r)
	// Ranks [0, remainder) get base+1 vertices; the rest get base.
	if rv < p.remainder {
		begin = rv * (p.base + 1)
		end = begin + p.base + 1
	} else {
		begin = p.remainder*(p.base+1) + (rv-p.remainder)*p.base
		end = begin + p.base
	}
	return begin, end
}

func (p *BalancedSlice) LocalN() ids.Vertex {
	begin, end := p.View(p.rank)
	return end - begin
}

func (p *BalancedSlice) ToLocal(v ids.Vertex) ids.Vertex {
	begin, end := p.View(p.rank)
	kaspanfault.Assertf(v >= begin && v < end, "vertex %d not owned by rank %d (range [%d,%d))", v, p.rank, begin, end)
	return v - begin
}

func (p *BalancedSlice) ToGlobal(k ids.Vertex) ids.Vertex {
	begin, end := p.View(p.rank)
	kaspanfault.Assertf(k >= 0 && k < end-begin, "local index %d out of range [0,%d)", k, end-begin)
	return begin + k
}

func (p *BalancedSlice) HasLocal(v ids.Vertex) bool {
	begin, end := p.View(p.rank)
	return v >= begin && v < end
}

func (p *BalancedSlice) WorldRankOf(v ids.Vertex) ids.Rank {
	kaspanfault.Assertf(v >= 0 && v < p.n, "vertex %d out of range [0,%d)", v, p.n)
	boundary := p.remainder * (p.base + 1)
	if v < boundary {
		return ids.Rank(v / (p.base + 1))
	}
	if p.base == 0 {
		return p.worldSize - 1
	}
	r := ids.Rank(p.remainder + (v-boundary)/p.base)
	if r >= p.worldSize {
		r = p.worldSize - 1
	}
	return r
}

// String renders the partition's own view for diagnostics; not used on
// any hot path.
func viewString(p Part) string {
	begin, end := p.View(p.Rank())
	return fmt.Sprintf("rank=%d/%d n=%d local=[%d,%d)", p.Rank(), p.WorldSize(), p.N(), begin, end)
}

// String implements fmt.Stringer for diagnostics.
func (p *TrivialSlice) String() string { return "trivial:" + viewString(p) }

// String implements fmt.Stringer for diagnostics.
func (p *BalancedSlice) String() string { return "balanced:" + viewString(p) }
