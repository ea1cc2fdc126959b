// Package mem implements the memory toolkit: a cache-line-aligned bit
// vector, a fixed-capacity stack, and a hashed dense-id map. These are
// the ephemeral per-phase structures the SCC phases allocate once and
// reuse.
package mem

import (
	"math/bits"

	"github.com/dreamware/kaspan/internal/kaspanfault"
)

const wordBits = 64

// BitVector is a packed 64-bits-per-word bit set over [0, n), backed by
// a cache-line-aligned u64 slice (see align.go). It supports population
// iteration, predicate-driven batch set, clear, and fill.
type BitVector struct {
	words []uint64
	n     int
}

// NewBitVector allocates a bit vector covering [0, n), all bits clear.
func NewBitVector(n int) *BitVector {
	kaspanfault.Assertf(n >= 0, "bit vector length must be non-negative, got %d", n)
	words := AlignedUint64s(ceilDiv(n, wordBits))
	return &BitVector{words: words, n: n}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Len returns the number of addressable bits.
func (bv *BitVector) Len() int { return bv.n }

func (bv *BitVector) checkIndex(i int) {
	kaspanfault.Assertf(i >= 0 && i < bv.n, "bit index %d out of range [0,%d)", i, bv.n)
}

// Get reports whether bit i is set.
func (bv *BitVector) Get(i int) bool {
	bv.checkIndex(i)
	return bv.words[i/wordBits]&(uint64(1)<<uint(i%wordBits)) != 0
}

// Set sets bit i.
func (bv *BitVector) Set(i int) {
	bv.checkIndex(i)
	bv.words[i/wordBits] |= uint64(1) << uint(i%wordBits)
}

// Unset clears bit i.
func (bv *BitVector) Unset(i int) {
	bv.checkIndex(i)
	bv.words[i/wordBits] &^= uint64(1) << uint(i%wordBits)
}

// Clear zeroes every bit in [0, end).
func (bv *BitVector) Clear(end int) {
	kaspanfault.Assertf(end >= 0 && end <= bv.n, "clear end %d out of range [0,%d]", end, bv.n)
	fullWords := end / wordBits
	for i := 0; i < fullWords; i++ {
		bv.words[i] = 0
	}
	if rem := end % wordBits; rem != 0 {
		mask := uint64(1)<<uint(rem) - 1
		bv.words[fullWords] &^= mask
	}
}

// Fill sets every bit in [0, end).
func (bv *BitVector) Fill(end int) {
	kaspanfault.Assertf(end >= 0 && end <= bv.n, "fill end %d out of range [0,%d]", end, bv.n)
	fullWords := end / wordBits
	for i := 0; i < fullWords; i++ {
		bv.words[i] = ^uint64(0)
	}
	if rem := end % wordBits; rem != 0 {
		mask := uint64(1)<<uint(rem) - 1
		bv.words[fullWords] |= mask
	}
}

// ForEach visits, in ascending order, every set bit index in [0, end),
// via popcount+trailing-zero iteration over whole words so runs of unset
// bits cost a single instruction rather than one check per bit.
func (bv *BitVector) ForEach(end int, fn func(i int)) {
	kaspanfault.Assertf(end >= 0 && end <= bv.n, "for_each end %d out of range [0,%d]", end, bv.n)
	fullWords := end / wordBits
	for wi := 0; wi < fullWords; wi++ {
		w := bv.words[wi]
		base := wi * wordBits
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			fn(base + tz)
			w &= w - 1 // clear lowest set bit
		}
	}
	if rem := end % wordBits; rem != 0 {
		mask := uint64(1)<<uint(rem) - 1
		w := bv.words[fullWords] & mask
		base := fullWords * wordBits
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			fn(base + tz)
			w &= w - 1
		}
	}
}

// SetEach evaluates predicate over every index in [0, end) one word at a
// time and ORs the resulting bit pattern directly into the backing word,
// avoiding a per-bit branch-and-store for indices the predicate rejects.
func (bv *BitVector) SetEach(end int, predicate func(i int) bool) {
	kaspanfault.Assertf(end >= 0 && end <= bv.n, "set_each end %d out of range [0,%d]", end, bv.n)
	fullWords := end / wordBits
	for wi := 0; wi < fullWords; wi++ {
		base := wi * wordBits
		var w uint64
		for b := 0; b < wordBits; b++ {
			if predicate(base + b) {
				w |= uint64(1) << uint(b)
			}
		}
		bv.words[wi] |= w
	}
	if rem := end % wordBits; rem != 0 {
		base := fullWords * wordBits
		var w uint64
		for b := 0; b < rem; b++ {
			if predicate(base + b) {
				w |= uint64(1) << uint(b)
			}
		}
		bv.words[fullWords] |= w
	}
}

// PopCount returns the number of set bits in [0, end).
func (bv *BitVector) PopCount(end int) int {
	kaspanfault.Assertf(end >= 0 && end <= bv.n, "popcount end %d out of range [0,%d]", end, bv.n)
	count := 0
	fullWords := end / wordBits
	for i := 0; i < fullWords; i++ {
		count += bits.OnesCount64(bv.words[i])
	}
	if rem := end % wordBits; rem != 0 {
		mask := uint64(1)<<uint(rem) - 1
		count += bits.OnesCount64(bv.words[fullWords] & mask)
	}
	return count
}
