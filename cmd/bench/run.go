package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/graph"
	"github.com/dreamware/kaspan/internal/ids"
	"github.com/dreamware/kaspan/internal/kaspanfault"
	"github.com/dreamware/kaspan/internal/kconfig"
	"github.com/dreamware/kaspan/internal/loader"
	"github.com/dreamware/kaspan/internal/part"
	"github.com/dreamware/kaspan/internal/scc"
	"github.com/dreamware/kaspan/internal/stats"
)

// benchConfig is the parsed, validated form of the CLI flags. --ranks
// stands in for the process launcher an MPI deployment would have: this
// single-binary simulation of multiple ranks has no launcher to supply
// P.
type benchConfig struct {
	ManifestFile      string
	KagenOptionString string
	OutputFile        string
	Ranks             int
	Async             bool
	AsyncIndirect     bool
	TrimTarjan        bool
}

// runBench validates the flags, loads or generates the graph, runs the
// pipeline across cfg.Ranks simulated ranks, and writes the per-rank
// stats.Snapshot tree to cfg.OutputFile. Any manifest/binary loader
// error is surfaced here, before any Fabric is constructed, so a bad
// input exits non-zero without a single collective call.
func runBench(cfg benchConfig) error {
	if err := validate(cfg); err != nil {
		return err
	}

	kcfg := kconfig.Default()
	kcfg.TrimTarjan = cfg.TrimTarjan
	kcfg.AsyncVariant = asyncVariant(cfg)

	n, bipartitions, synthEdges, err := loadGraph(cfg)
	if err != nil {
		return err
	}

	fabrics, teardown, err := buildFabrics(cfg, kcfg.AsyncVariant)
	if err != nil {
		return err
	}
	defer teardown()

	snapshots := make([]stats.Snapshot, cfg.Ranks)
	rankErrs := make([]error, cfg.Ranks)
	var wg sync.WaitGroup
	for r := 0; r < cfg.Ranks; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				// A rank's own goroutine is as close as this single-process
				// simulation gets to aborting one rank without taking every
				// other rank's goroutine down with it via an unrecovered
				// panic.
				if rec := recover(); rec != nil {
					if v, ok := rec.(*kaspanfault.Violation); ok {
						rankErrs[rank] = fmt.Errorf("rank %d: %s", rank, v.Error())
						return
					}
					panic(rec)
				}
			}()

			fabric := fabrics[rank]
			tree := stats.New()

			b := bipartitions[rank]
			if b == nil {
				b = buildSyntheticBipartition(n, synthEdges, rank, cfg.Ranks, fabric, tree)
			}

			tm := tree.Start("scc")
			sccID := scc.Run(b, fabric, kcfg)
			tm.Stop()

			tree.Count("vertices_decided", int64(len(sccID)))
			tree.Count("distinct_sccs", int64(countDistinct(sccID)))
			snapshots[rank] = tree.Snapshot()
		}(r)
	}
	wg.Wait()

	for _, rerr := range rankErrs {
		if rerr != nil {
			return rerr
		}
	}

	return writeSnapshots(cfg.OutputFile, snapshots)
}

func validate(cfg benchConfig) error {
	if (cfg.ManifestFile == "") == (cfg.KagenOptionString == "") {
		return fmt.Errorf("exactly one of --manifest_file or --kagen_option_string must be set")
	}
	if cfg.OutputFile == "" {
		return fmt.Errorf("--output_file is required")
	}
	if cfg.Ranks < 1 {
		return fmt.Errorf("--ranks must be >= 1, got %d", cfg.Ranks)
	}
	return nil
}

func asyncVariant(cfg benchConfig) kconfig.AsyncVariant {
	switch {
	case cfg.AsyncIndirect:
		return kconfig.AsyncGridIndirection
	case cfg.Async:
		return kconfig.AsyncNoopIndirection
	default:
		return kconfig.AsyncOff
	}
}

// loadGraph resolves the graph source. For a manifest, every rank's
// Bipartition is fully built here (both CSR directions come straight out
// of the binary files) since loading never touches a Fabric. For a
// synthetic graph, only the vertex count and the full edge list are
// produced here; each rank's forward CSR and backward transpose are built
// inside its own goroutine in buildSyntheticBipartition, since the
// distributed transpose is itself collective.
func loadGraph(cfg benchConfig) (n ids.Vertex, bipartitions []*graph.Bipartition, synthEdges []comm.Edge, err error) {
	bipartitions = make([]*graph.Bipartition, cfg.Ranks)

	if cfg.ManifestFile != "" {
		m, err := loader.LoadManifest(cfg.ManifestFile)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("loading manifest: %w", err)
		}
		n = ids.Vertex(m.NodeCount)
		for r := 0; r < cfg.Ranks; r++ {
			p := part.NewTrivialSlice(n, r, cfg.Ranks)
			fw, bw, err := loader.LoadPartition(m, p)
			if err != nil {
				return 0, nil, nil, fmt.Errorf("loading partition for rank %d: %w", r, err)
			}
			bipartitions[r] = &graph.Bipartition{Part: p, Fw: fw, Bw: bw}
		}
		return n, bipartitions, nil, nil
	}

	opts, err := parseKagenOptionString(cfg.KagenOptionString)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("parsing --kagen_option_string: %w", err)
	}
	n, synthEdges, err = syntheticGraph(opts)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("generating synthetic graph: %w", err)
	}
	return n, bipartitions, synthEdges, nil
}

func buildSyntheticBipartition(n ids.Vertex, edges []comm.Edge, rank, worldSize int, fabric comm.Fabric, tree *stats.Tree) *graph.Bipartition {
	tm := tree.Start("load")
	defer tm.Stop()

	p := part.NewTrivialSlice(n, rank, worldSize)
	var local []comm.Edge
	for _, e := range edges {
		if p.HasLocal(e.U) {
			local = append(local, e)
		}
	}
	fw := graph.FromLocalEdges(p, local)
	var bw *graph.CSR
	if worldSize == 1 {
		bw = graph.TransposeLocal(p, fw)
	} else {
		bw = graph.TransposeDistributed(p, fw, fabric)
	}
	return &graph.Bipartition{Part: p, Fw: fw, Bw: bw}
}

// buildFabrics constructs one Fabric per rank and a teardown func. The
// synchronous variant shares a single in-process World; the two HTTP
// variants each get their own rank-indexed address table reserved via
// comm.FreePort before any server starts.
func buildFabrics(cfg benchConfig, variant kconfig.AsyncVariant) ([]comm.Fabric, func(), error) {
	fabrics := make([]comm.Fabric, cfg.Ranks)

	if variant == kconfig.AsyncOff {
		world := comm.NewLocalWorld(cfg.Ranks)
		for r := 0; r < cfg.Ranks; r++ {
			fabrics[r] = comm.NewFabric(world, r)
		}
		return fabrics, func() {}, nil
	}

	addrs := make([]string, cfg.Ranks)
	for r := 0; r < cfg.Ranks; r++ {
		addr, err := comm.FreePort()
		if err != nil {
			return nil, nil, fmt.Errorf("reserving port for rank %d: %w", r, err)
		}
		addrs[r] = addr
	}

	var scheme comm.IndirectionScheme
	if variant == kconfig.AsyncGridIndirection {
		scheme = comm.GridIndirection{}
	}

	httpFabrics := make([]*comm.HTTPFabric, cfg.Ranks)
	for r := 0; r < cfg.Ranks; r++ {
		f, err := comm.NewHTTPFabric(r, addrs, scheme)
		if err != nil {
			return nil, nil, fmt.Errorf("starting rank %d: %w", r, err)
		}
		httpFabrics[r] = f
		fabrics[r] = f
	}
	teardown := func() {
		for _, f := range httpFabrics {
			_ = f.Close()
		}
	}
	return fabrics, teardown, nil
}

func countDistinct(sccID []ids.Vertex) int {
	seen := make(map[ids.Vertex]bool, len(sccID))
	for _, v := range sccID {
		seen[v] = true
	}
	return len(seen)
}

func writeSnapshots(path string, snapshots []stats.Snapshot) error {
	out := make(map[string]stats.Snapshot, len(snapshots))
	for r, s := range snapshots {
		out[fmt.Sprintf("%d", r)] = s
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	log.Printf("bench: wrote %d rank(s) of stats to %s", len(snapshots), path)
	return nil
}
