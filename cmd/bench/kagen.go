package main

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/viper"

	"github.com/dreamware/kaspan/internal/comm"
	"github.com/dreamware/kaspan/internal/ids"
)

// parseKagenOptionString parses --kagen_option_string into a viper
// instance: a semicolon-delimited "key=value" grammar (KaGen's own
// option-string shape), rewritten one pair per line and fed to viper as
// a "properties" document.
func parseKagenOptionString(s string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("gen", "gnm")
	v.SetDefault("seed", int64(1))

	v.SetConfigType("properties")
	lines := strings.Split(s, ";")
	if err := v.ReadConfig(strings.NewReader(strings.Join(lines, "\n"))); err != nil {
		return nil, fmt.Errorf("parsing option string: %w", err)
	}
	return v, nil
}

// syntheticGraph builds a directed G(n,m) random graph: n vertices, m
// edges chosen uniformly at random (self-loops excluded when n > 1,
// duplicates tolerated), seeded for reproducibility.
func syntheticGraph(opts *viper.Viper) (ids.Vertex, []comm.Edge, error) {
	gen := opts.GetString("gen")
	if gen != "gnm" {
		return 0, nil, fmt.Errorf("unsupported generator kind %q (only \"gnm\" is implemented)", gen)
	}

	n := opts.GetInt64("n")
	if n <= 0 {
		return 0, nil, fmt.Errorf("kagen option \"n\" must be a positive integer, got %d", n)
	}
	m := opts.GetInt64("m")
	if m < 0 {
		return 0, nil, fmt.Errorf("kagen option \"m\" must be non-negative, got %d", m)
	}
	seed := opts.GetInt64("seed")

	rng := rand.New(rand.NewSource(seed))
	edges := make([]comm.Edge, 0, m)
	for i := int64(0); i < m; i++ {
		u := ids.Vertex(rng.Int63n(n))
		v := ids.Vertex(rng.Int63n(n))
		for v == u && n > 1 {
			v = ids.Vertex(rng.Int63n(n))
		}
		edges = append(edges, comm.Edge{U: u, V: v})
	}
	return ids.Vertex(n), edges, nil
}
