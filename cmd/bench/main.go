// Command bench drives internal/scc.Run over a manifest-backed or
// synthetically generated graph, across a fixed number of simulated
// ranks, and reports per-rank timing/counters as JSON.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
