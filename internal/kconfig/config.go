// Package kconfig collects the engine's configuration knobs into a single
// struct threaded from cmd/bench down into the orchestrator. None of these
// knobs change the result of an SCC run; they only change how it is
// computed.
package kconfig

// AsyncVariant selects the Fabric implementation.
type AsyncVariant string

const (
	// AsyncOff is the synchronous, collective-per-round LocalFabric.
	AsyncOff AsyncVariant = "off"
	// AsyncNoopIndirection runs over HTTPFabric with direct point-to-point
	// delivery (no intermediate relay).
	AsyncNoopIndirection AsyncVariant = "noop-indirection"
	// AsyncGridIndirection runs over HTTPFabric with messages relayed
	// through a sqrt(P)-by-sqrt(P) grid of intermediaries, bounding the
	// fan-out of any single rank.
	AsyncGridIndirection AsyncVariant = "grid-indirection"
)

// Config is the full set of recognized knobs.
type Config struct {
	// AsyncVariant selects the communication fabric.
	AsyncVariant AsyncVariant

	// VertexWidth is the on-disk byte width for vertex ids (the
	// manifest's graph.csr.bytes). In-memory representation is always
	// 64-bit. internal/loader takes the on-disk widths from the manifest
	// itself and does not read this field.
	VertexWidth int

	// IndexWidth is the on-disk byte width for CSR offsets (the
	// manifest's graph.head.bytes).
	IndexWidth int

	// LabelRotation enables the rotating-label schedule for multi-pivot
	// color propagation: labels are bit-rotated by the outer round
	// counter so a different vertex wins the label race each round.
	LabelRotation bool

	// TrimTarjan enables an optional serial-Tarjan pre-pass over each
	// rank's purely local undecided subgraph before color propagation.
	// Off by default.
	TrimTarjan bool
}

// Default returns the configuration the orchestrator uses when the CLI
// passes no overrides: synchronous local fabric, 64-bit ids throughout,
// no rotation, no trim-Tarjan pre-pass.
func Default() Config {
	return Config{
		AsyncVariant:  AsyncOff,
		VertexWidth:   8,
		IndexWidth:    8,
		LabelRotation: false,
		TrimTarjan:    false,
	}
}
