package part

import (
	"sync"

	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
)

// rankTable is a cached per-rank lookup used by non-continuous partition
// variants (Cyclic, BlockCyclic) to answer WorldRankOf in O(1) after an
// initial O(n) build, instead of recomputing the modular arithmetic on
// every lookup.
//
// Reads are frequent and concurrent (every WorldRankOf call from the
// pipeline's hot BFS/propagation loops); the assignment is written exactly
// once at partition construction, so the lock only guards the one-time
// build against a racing first reader.
type rankTable struct {
	owner []ids.Rank // owner[v] = rank owning global vertex v
	mu    sync.RWMutex
	built bool
}

func (t *rankTable) ensureBuilt(n ids.Vertex, assign func(ids.Vertex) ids.Rank) {
	t.mu.RLock()
	if t.built {
		t.mu.RUnlock()
		return
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.built {
		return
	}
	owner := make([]ids.Rank, n)
	for v := ids.Vertex(0); v < n; v++ {
		owner[v] = assign(v)
	}
	t.owner = owner
	t.built = true
}

func (t *rankTable) lookup(v ids.Vertex) ids.Rank {
	t.mu.RLock()
	defer t.mu.RUnlock()
	kaspanfault.Assertf(t.built, "rank table queried before it was built")
	return t.owner[v]
}

// Cyclic assigns global vertex v to rank v mod P: round-robin. Not
// continuous: a rank's owned vertices are not a contiguous range.
type Cyclic struct {
	table     rankTable
	n         ids.Vertex
	rank      ids.Rank
	worldSize int
	local     []ids.Vertex // global ids owned by this rank, ascending
	localIdx  map[ids.Vertex]ids.Vertex
}

// NewCyclic builds the round-robin partition for rank out of worldSize
// ranks over n vertices.
func NewCyclic(n ids.Vertex, rank ids.Rank, worldSize int) *Cyclic {
	kaspanfault.Assertf(worldSize > 0, "world size must be positive, got %d", worldSize)
	kaspanfault.Assertf(rank >= 0 && rank < worldSize, "rank %d out of range [0,%d)", rank, worldSize)
	c := &Cyclic{n: n, rank: rank, worldSize: worldSize}
	c.localIdx = make(map[ids.Vertex]ids.Vertex)
	for v := ids.Vertex(rank); v < n; v += ids.Vertex(worldSize) {
		c.localIdx[v] = ids.Vertex(len(c.local))
		c.local = append(c.local, v)
	}
	c.table.ensureBuilt(n, func(v ids.Vertex) ids.Rank { return ids.Rank(v % ids.Vertex(worldSize)) })
	return c
}

func (c *Cyclic) N() ids.Vertex         { return c.n }
func (c *Cyclic) LocalN() ids.Vertex    { return ids.Vertex(len(c.local)) }
func (c *Cyclic) Rank() ids.Rank        { return c.rank }
func (c *Cyclic) WorldSize() int        { return c.worldSize }
func (c *Cyclic) Continuous() bool      { return false }
func (c *Cyclic) View(ids.Rank) (ids.Vertex, ids.Vertex) {
	kaspanfault.Assertf(false, "View is undefined for a non-continuous partition")
	return 0, 0
}

func (c *Cyclic) ToLocal(v ids.Vertex) ids.Vertex {
	k, ok := c.localIdx[v]
	kaspanfault.Assertf(ok, "vertex %d not owned by rank %d", v, c.rank)
	return k
}

func (c *Cyclic) ToGlobal(k ids.Vertex) ids.Vertex {
	kaspanfault.Assertf(k >= 0 && k < ids.Vertex(len(c.local)), "local index %d out of range [0,%d)", k, len(c.local))
	return c.local[k]
}

func (c *Cyclic) HasLocal(v ids.Vertex) bool {
	_, ok := c.localIdx[v]
	return ok
}

func (c *Cyclic) WorldRankOf(v ids.Vertex) ids.Rank { return c.table.lookup(v) }

// BlockCyclic assigns vertices in contiguous chunks of blockSize, then
// cycles the chunks round-robin across ranks: chunk i is owned by rank
// (i mod P). Not continuous in general (blockSize < n/P).
type BlockCyclic struct {
	table     rankTable
	localIdx  map[ids.Vertex]ids.Vertex
	n         ids.Vertex
	blockSize ids.Vertex
	rank      ids.Rank
	worldSize int
	local     []ids.Vertex
}

// NewBlockCyclic builds the block-cyclic partition with the given block
// size for rank out of worldSize ranks over n vertices.
func NewBlockCyclic(n ids.Vertex, blockSize ids.Vertex, rank ids.Rank, worldSize int) *BlockCyclic {
	kaspanfault.Assertf(worldSize > 0, "world size must be positive, got %d", worldSize)
	kaspanfault.Assertf(blockSize > 0, "block size must be positive, got %d", blockSize)
	kaspanfault.Assertf(rank >= 0 && rank < worldSize, "rank %d out of range [0,%d)", rank, worldSize)

	bc := &BlockCyclic{n: n, blockSize: blockSize, rank: rank, worldSize: worldSize}
	bc.localIdx = make(map[ids.Vertex]ids.Vertex)
	blockOf := func(v ids.Vertex) ids.Vertex { return v / blockSize }
	ownerOf := func(v ids.Vertex) ids.Rank { return ids.Rank(blockOf(v) % ids.Vertex(worldSize)) }
	for v := ids.Vertex(0); v < n; v++ {
		if ownerOf(v) == rank {
			bc.localIdx[v] = ids.Vertex(len(bc.local))
			bc.local = append(bc.local, v)
		}
	}
	bc.table.ensureBuilt(n, ownerOf)
	return bc
}

func (b *BlockCyclic) N() ids.Vertex      { return b.n }
func (b *BlockCyclic) LocalN() ids.Vertex { return ids.Vertex(len(b.local)) }
func (b *BlockCyclic) Rank() ids.Rank     { return b.rank }
func (b *BlockCyclic) WorldSize() int     { return b.worldSize }
func (b *BlockCyclic) Continuous() bool   { return false }
func (b *BlockCyclic) View(ids.Rank) (ids.Vertex, ids.Vertex) {
	kaspanfault.Assertf(false, "View is undefined for a non-continuous partition")
	return 0, 0
}

func (b *BlockCyclic) ToLocal(v ids.Vertex) ids.Vertex {
	k, ok := b.localIdx[v]
	kaspanfault.Assertf(ok, "vertex %d not owned by rank %d", v, b.rank)
	return k
}

func (b *BlockCyclic) ToGlobal(k ids.Vertex) ids.Vertex {
	kaspanfault.Assertf(k >= 0 && k < ids.Vertex(len(b.local)), "local index %d out of range [0,%d)", k, len(b.local))
	return b.local[k]
}

func (b *BlockCyclic) HasLocal(v ids.Vertex) bool {
	_, ok := b.localIdx[v]
	return ok
}

func (b *BlockCyclic) WorldRankOf(v ids.Vertex) ids.Rank { return b.table.lookup(v) }
