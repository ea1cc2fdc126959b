package mem

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
)

// idMapEmpty marks an unused slot. ids.Undecided is already reserved as
// the scc_id sentinel, so the id map uses -1, which is never a valid
// global vertex id.
const idMapEmpty ids.Vertex = -1

// idBucket is one open-addressed block of keys/values: 8 keys + 8
// values of 8 bytes each = 128 bytes, two cache lines on the usual
// 64-byte line. Probing resolves collisions
// within a bucket before moving to the next bucket (linear probing at
// bucket granularity), which is what lets a single bucket satisfy a
// handful of probes with a single cache-line fetch.
const idBucketSlots = 8

type idBucket struct {
	keys [idBucketSlots]ids.Vertex
	vals [idBucketSlots]ids.Vertex
}

// IDMap assigns a sparse set of global vertex ids onto a dense [0, k)
// range: linear-probed open addressing over cache-line-packed buckets,
// with an idempotent Insert and a panic-on-miss Get. Hashing is xxhash
// rather than a hand-rolled mix function.
type IDMap struct {
	buckets []idBucket
	mask    uint64
	size    int
}

// NewIDMap allocates an id map sized for at least capacityHint entries
// at a 50% target load factor, rounded to a power-of-two bucket count.
// The map never rehashes: callers size capacityHint to the known upper
// bound of keys they will insert (e.g. residual gather's undecided
// count, known before the map is built). Insert panics only once every
// slot is taken, which is at least twice capacityHint.
func NewIDMap(capacityHint int) *IDMap {
	kaspanfault.Assertf(capacityHint >= 0, "capacity hint must be non-negative, got %d", capacityHint)
	slots := nextPow2(max(capacityHint*2, idBucketSlots))
	nBuckets := slots / idBucketSlots
	if nBuckets < 1 {
		nBuckets = 1
	}
	m := &IDMap{buckets: make([]idBucket, nBuckets), mask: uint64(nBuckets - 1)}
	for b := range m.buckets {
		for s := 0; s < idBucketSlots; s++ {
			m.buckets[b].keys[s] = idMapEmpty
		}
	}
	return m
}

func nextPow2(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

func hashVertex(v ids.Vertex) uint64 {
	var buf [8]byte
	u := uint64(v)
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

// Insert assigns key a dense id on first sight and returns it; a
// previously-seen key returns its existing dense id unchanged.
func (m *IDMap) Insert(key ids.Vertex) ids.Vertex {
	bi := hashVertex(key) & m.mask
	for probe := uint64(0); ; probe++ {
		bucket := &m.buckets[(bi+probe)&m.mask]
		for s := 0; s < idBucketSlots; s++ {
			if bucket.keys[s] == key {
				return bucket.vals[s]
			}
			if bucket.keys[s] == idMapEmpty {
				bucket.keys[s] = key
				bucket.vals[s] = ids.Vertex(m.size)
				m.size++
				return bucket.vals[s]
			}
		}
		kaspanfault.Assertf(probe < uint64(len(m.buckets)), "id map full: probed every bucket for key %d", key)
	}
}

// Get returns the dense id previously assigned to key. Panics if key
// was never inserted.
func (m *IDMap) Get(key ids.Vertex) ids.Vertex {
	bi := hashVertex(key) & m.mask
	for probe := uint64(0); probe < uint64(len(m.buckets)); probe++ {
		bucket := &m.buckets[(bi+probe)&m.mask]
		for s := 0; s < idBucketSlots; s++ {
			if bucket.keys[s] == key {
				return bucket.vals[s]
			}
			if bucket.keys[s] == idMapEmpty {
				kaspanfault.Assertf(false, "id map get on absent key %d", key)
			}
		}
	}
	kaspanfault.Assertf(false, "id map get on absent key %d", key)
	return idMapEmpty
}

// Contains reports whether key has been inserted, without the panic
// Get raises on a miss. Used by membership checks that must not assume
// a key is present (e.g. residual gather's "is this neighbor also
// undecided" test).
func (m *IDMap) Contains(key ids.Vertex) bool {
	bi := hashVertex(key) & m.mask
	for probe := uint64(0); probe < uint64(len(m.buckets)); probe++ {
		bucket := &m.buckets[(bi+probe)&m.mask]
		for s := 0; s < idBucketSlots; s++ {
			if bucket.keys[s] == key {
				return true
			}
			if bucket.keys[s] == idMapEmpty {
				return false
			}
		}
	}
	return false
}

// Len returns the number of distinct keys inserted so far: the k in
// the map's dense [0, k) range.
func (m *IDMap) Len() int { return m.size }
