package main

import (
	"fmt"
	"sync/atomic"

	"github.com/psarna/fsalloc/fsalloc"
)

// workload is the single mutator: one goroutine sweeping write/verify
// passes over a fixed set of regions so the engine always has faults to
// serve. The UI goroutine only reads the atomic progress counters.
type workload struct {
	regions [][]byte
	size    int

	rounds atomic.Uint64
	failed atomic.Pointer[error]
	quit   chan struct{}
	done   chan struct{}
}

func newWorkload(n, size int) *workload {
	return &workload{
		regions: make([][]byte, n),
		size:    size,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *workload) start() error {
	for i := range w.regions {
		b, err := fsalloc.Alloc(w.size)
		if err != nil {
			return err
		}
		w.regions[i] = b
	}
	go w.run()
	return nil
}

func (w *workload) run() {
	defer close(w.done)
	for round := uint64(1); ; round++ {
		select {
		case <-w.quit:
			return
		default:
		}
		for i, b := range w.regions {
			for j := range b {
				b[j] = byte(round) ^ byte(i) ^ byte(j)
			}
		}
		for i, b := range w.regions {
			for j := range b {
				if want := byte(round) ^ byte(i) ^ byte(j); b[j] != want {
					err := fmt.Errorf("round %d region %d byte %d: got %#x, want %#x",
						round, i, j, b[j], want)
					w.failed.Store(&err)
					return
				}
			}
		}
		w.rounds.Store(round)
	}
}

func (w *workload) stop() {
	close(w.quit)
	<-w.done
}

func (w *workload) err() error {
	if p := w.failed.Load(); p != nil {
		return *p
	}
	return nil
}
