// fsalloctop runs a paging workload against the fsalloc allocator and
// renders its counters live in the terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/psarna/fsalloc/fsalloc"
)

func main() {
	var (
		store    = flag.String("store", filepath.Join(os.TempDir(), "fsalloc-top.db"), "backing store path")
		capacity = flag.Int("capacity", 8, "resident-region budget")
		regions  = flag.Int("regions", 64, "live regions in the workload")
		size     = flag.Int("size", 4096, "region size in bytes")
	)
	flag.Parse()

	if err := fsalloc.Init(*store, fsalloc.WithCapacity(*capacity)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer fsalloc.Term()

	w := newWorkload(*regions, *size)
	if err := w.start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer w.stop()

	p := tea.NewProgram(newModel(w, *capacity), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
