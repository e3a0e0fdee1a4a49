//go:build linux

package fsalloc

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/psarna/fsalloc/internal/store"
	"github.com/psarna/fsalloc/internal/uffd"
	"github.com/psarna/fsalloc/internal/vmem"
)

// Info is the per-region metadata record.
type Info struct {
	key    store.Key // 0 until the first dirty eviction
	size   int       // logical size as requested
	dirty  bool      // in-RAM bytes differ from the stored copy
	cached bool      // region is resident
	m      []byte    // the whole page-rounded reservation
}

// engine holds the process-wide paging state: the allocation table, the
// resident FIFO, the fault-delivery handle and the backing store. All
// fields are guarded by mu; the fault-serving goroutine and the mutator
// API take it in turns.
type engine struct {
	mu sync.Mutex

	regions map[uintptr]*Info   // region base -> metadata
	pages   map[uintptr]uintptr // page base -> region base

	queue    residentQueue
	capacity int

	stats Stats

	u       *uffd.Handle
	st      *store.Store
	foreign ForeignAccessFunc

	done chan struct{} // closed when the serve loop exits
}

// defaultForeignAccess re-raises SIGSEGV so an access beyond a region's
// logical size dies the way any wild access does.
func defaultForeignAccess(uintptr) {
	unix.Kill(unix.Getpid(), unix.SIGSEGV)
}

func newEngine(path string, cfg config) (*engine, error) {
	// A thread sleeping in a page fault keeps its P, so the serve loop
	// needs a second one to make progress.
	if runtime.GOMAXPROCS(0) < 2 {
		runtime.GOMAXPROCS(2)
	}

	st, err := store.Open(path, store.Options{PageSize: vmem.PageSize()})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreInit, err)
	}

	// The fault handler is installed last, after every collaborator it
	// reaches into is ready.
	u, err := uffd.New()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandlerInstall, err)
	}

	e := &engine{
		regions:  make(map[uintptr]*Info),
		pages:    make(map[uintptr]uintptr),
		capacity: cfg.capacity,
		u:        u,
		st:       st,
		foreign:  cfg.foreign,
		done:     make(chan struct{}),
	}

	// Probe write-protect support up front: without it a write to a
	// clean resident is invisible and its data would be lost.
	if err := e.probeWriteProtect(); err != nil {
		u.Close()
		st.Close()
		return nil, err
	}

	go func() {
		defer close(e.done)
		u.Serve(e.handleFault)
	}()
	return e, nil
}

// probeWriteProtect registers and releases a throwaway page so a kernel
// without anonymous write-protect tracking fails Init instead of
// corrupting data later.
func (e *engine) probeWriteProtect() error {
	m, err := vmem.Reserve(vmem.PageSize())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfAddressSpace, err)
	}
	defer vmem.Release(m)
	if err := e.u.Register(vmem.Base(m), len(m)); err != nil {
		return fmt.Errorf("%w: %v", ErrProtect, err)
	}
	if err := e.u.Unregister(vmem.Base(m), len(m)); err != nil {
		return fmt.Errorf("%w: %v", ErrProtect, err)
	}
	return nil
}

func (e *engine) alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := vmem.Reserve(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfAddressSpace, err)
	}
	base := vmem.Base(m)
	if err := e.u.Register(base, len(m)); err != nil {
		vmem.Release(m)
		return nil, fmt.Errorf("%w: %v", ErrProtect, err)
	}

	e.regions[base] = &Info{size: size, cached: true, m: m}
	for off := 0; off < len(m); off += vmem.PageSize() {
		e.pages[base+uintptr(off)] = base
	}

	if err := e.admitLocked(base); err != nil {
		return m[:size:size], err
	}
	e.stats.Allocs++
	return m[:size:size], nil
}

func (e *engine) free(addr uintptr) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.regions[addr]
	if !ok {
		return nil
	}
	if info.key != 0 {
		if err := e.st.Del(info.key); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreDel, err)
		}
	}
	if err := e.u.Unregister(addr, len(info.m)); err != nil {
		return fmt.Errorf("%w: %v", ErrProtect, err)
	}
	if err := vmem.Release(info.m); err != nil {
		return err
	}
	for off := 0; off < len(info.m); off += vmem.PageSize() {
		delete(e.pages, addr+uintptr(off))
	}
	delete(e.regions, addr)
	// The resident queue may still hold this base; write-back skips
	// entries with no table record.
	e.stats.Frees++
	return nil
}

// admitLocked appends base to the resident queue and evicts from the
// head until the queue is back within capacity.
func (e *engine) admitLocked(base uintptr) error {
	e.queue.push(base)
	for e.queue.len() > e.capacity {
		if err := e.writebackLocked(); err != nil {
			return err
		}
	}
	return nil
}

// writebackLocked evicts the region at the queue head: clean residents
// are discarded in place, dirty ones are flushed to the store first.
func (e *engine) writebackLocked() error {
	base, ok := e.queue.pop()
	if !ok {
		return nil
	}
	info, ok := e.regions[base]
	if !ok {
		// Freed while queued; nothing to evict and nothing to charge.
		return nil
	}
	info.cached = false

	if !info.dirty {
		if err := vmem.Discard(info.m); err != nil {
			return fmt.Errorf("%w: %v", ErrDiscard, err)
		}
		e.stats.CacheHits++
		return nil
	}

	if info.key != 0 {
		if err := e.st.PutAt(info.key, info.m); err != nil {
			return fmt.Errorf("%w: %v", ErrStorePut, err)
		}
	} else {
		key, err := e.st.Put(info.m)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorePut, err)
		}
		info.key = key
	}
	info.dirty = false

	if err := vmem.Discard(info.m); err != nil {
		return fmt.Errorf("%w: %v", ErrDiscard, err)
	}
	e.stats.Writebacks++
	return nil
}

func (e *engine) writeback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queue.len() == 0 {
		return nil
	}
	return e.writebackLocked()
}

func (e *engine) snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *engine) term() error {
	// Uninstall the handler first: stop the serve loop, then tear down
	// the state it reaches into.
	e.u.Shutdown()
	<-e.done

	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for base, info := range e.regions {
		if err := e.u.Unregister(base, len(info.m)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: %v", ErrProtect, err)
		}
		if err := vmem.Release(info.m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.regions = nil
	e.pages = nil
	e.queue.reset()

	if err := e.u.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	// No implicit flush: resident dirty regions die with the process
	// unless the caller drained the queue with Writeback first.
	if err := e.st.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
