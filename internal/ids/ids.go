// Package ids defines the scalar identifier types shared by every kaspan
// component: vertex identifiers, CSR edge-array offsets, and the sentinel
// value used to mark an undecided SCC assignment.
//
// Graph files on disk store vertex ids and offsets at widths between 1 and
// 8 bytes; in memory every rank always uses the 64-bit representation. It
// is a strict superset of the narrower widths and avoids a second code
// path through every package in this module. On-disk width accounting
// lives in internal/kconfig and internal/loader.
package ids

import "math"

// Vertex is a global vertex identifier in [0, n).
type Vertex = int64

// Index is a CSR row-offset / edge-array offset.
type Index = int64

// Undecided marks a vertex whose SCC is not yet known: the maximum
// representable Vertex, which can never collide with a real id.
const Undecided Vertex = math.MaxInt64

// Rank identifies one member of the process group, numbered [0, WorldSize).
type Rank = int
