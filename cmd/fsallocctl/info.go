package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/psarna/fsalloc/fsalloc"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the paging parameters of this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := os.Getpagesize()
			if jsonOut {
				return printJSON(map[string]int{
					"page_size":        pg,
					"default_capacity": fsalloc.DefaultCapacity,
				})
			}
			printInfo("page size:         %d bytes\n", pg)
			printInfo("default capacity:  %d regions (%d bytes resident)\n",
				fsalloc.DefaultCapacity, fsalloc.DefaultCapacity*pg)
			return nil
		},
	}
}
