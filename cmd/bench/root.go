package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/kaspan/internal/kaspanfault"
)

var (
	manifestFile      string
	kagenOptionString string
	outputFile        string
	worldSize         int
	asyncFlag         bool
	asyncIndirect     bool
	trimTarjan        bool
)

// rootCmd is bench's single command.
var rootCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compute scc_id over a partitioned graph and report per-rank timings",
	Long: `bench loads a directed graph, either from a manifest file (binary CSR
format) or generated synthetically from --kagen_option_string, partitions it
across --ranks simulated ranks, runs the SCC pipeline, and writes a per-rank
timing/counter tree to --output_file.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.Flags().StringVar(&manifestFile, "manifest_file", "", "path to a manifest file (mutually exclusive with --kagen_option_string)")
	rootCmd.Flags().StringVar(&kagenOptionString, "kagen_option_string", "", `synthetic generator options, e.g. "n=1000;m=4000;seed=7"`)
	rootCmd.Flags().StringVar(&outputFile, "output_file", "", "path to write the per-rank timing/counter JSON (required)")
	rootCmd.Flags().IntVar(&worldSize, "ranks", 1, "number of simulated ranks to partition the graph across")
	rootCmd.Flags().BoolVar(&asyncFlag, "async", false, "run over the networked HTTPFabric instead of the synchronous in-process fabric")
	rootCmd.Flags().BoolVar(&asyncIndirect, "async_indirect", false, "run over HTTPFabric with grid-indirection routing (implies --async)")
	rootCmd.Flags().BoolVar(&trimTarjan, "trim_tarjan", false, "enable the optional local-Tarjan pre-pass after pivot decomposition")
	_ = rootCmd.MarkFlagRequired("output_file")
}

// runRoot recovers kaspanfault.Violation panics raised on the main
// goroutine, the only place outside the per-rank goroutines allowed to.
// Any other panic is not ours to interpret and is left to propagate.
func runRoot(cmd *cobra.Command, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(*kaspanfault.Violation)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%s", v.Error())
		}
	}()
	return runBench(benchConfig{
		ManifestFile:      manifestFile,
		KagenOptionString: kagenOptionString,
		OutputFile:        outputFile,
		Ranks:             worldSize,
		Async:             asyncFlag,
		AsyncIndirect:     asyncIndirect,
		TrimTarjan:        trimTarjan,
	})
}
