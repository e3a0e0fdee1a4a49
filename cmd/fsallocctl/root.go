package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/psarna/fsalloc/fsalloc"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "fsallocctl",
	Short: "Exercise the fsalloc paging allocator",
	Long: `fsallocctl runs workloads against the fsalloc allocator: memory whose
cold regions are transparently spilled to an on-disk store under a fixed
residency budget. Use it to demo the paging behavior, stress data
integrity under thrashing, and inspect the engine's counters.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// npr formats counters with locale grouping so large runs stay readable.
var npr = message.NewPrinter(language.English)

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		npr.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		npr.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printStats renders the engine counters in either output mode.
func printStats() error {
	s, err := fsalloc.GetStats()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(map[string]uint64{
			"allocs":     s.Allocs,
			"frees":      s.Frees,
			"cache_hits": s.CacheHits,
			"writebacks": s.Writebacks,
		})
	}
	printInfo("allocs:      %d\n", s.Allocs)
	printInfo("frees:       %d\n", s.Frees)
	printInfo("cache hits:  %d\n", s.CacheHits)
	printInfo("writebacks:  %d\n", s.Writebacks)
	return nil
}
