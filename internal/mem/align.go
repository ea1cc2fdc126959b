package mem

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLine is the cache line width in bytes, taken from the platform's
// false-sharing pad size (64 on x86-64 and most arm64 targets, wider on
// the few that pad more conservatively).
const CacheLine = int(unsafe.Sizeof(cpu.CacheLinePad{}))

// AlignedUint64s returns a []uint64 of length n whose backing array's
// first element starts on a CacheLine boundary, so SIMD lanes and the
// popcount/ctz bit-vector kernels in bitvector.go never pay a split-load
// penalty reading across a cache line.
//
// Go's allocator offers no direct "aligned alloc"; the standard
// workaround (mirrored here) over-allocates by less than one cache line
// and slices forward to the first aligned element.
func AlignedUint64s(n int) []uint64 {
	if n <= 0 {
		return nil
	}
	elemsPerLine := CacheLine / 8
	raw := make([]uint64, n+elemsPerLine-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := (CacheLine - int(addr%uintptr(CacheLine))) % CacheLine
	start := offset / 8
	return raw[start : start+n : start+n]
}
