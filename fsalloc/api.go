//go:build linux

package fsalloc

import (
	"sync"
	"unsafe"
)

// The fault handler has no closure, so the engine is genuinely
// process-wide: one instance, acquired through explicit Init.
var (
	globalMu sync.Mutex
	global   *engine
)

// Init opens the backing store at path, installs the fault handler and
// arms the engine. Calling Init twice without an intervening Term fails
// with ErrInitialized.
func Init(path string, opts ...Option) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		return ErrInitialized
	}
	e, err := newEngine(path, newConfig(opts))
	if err != nil {
		return err
	}
	global = e
	return nil
}

// Term uninstalls the fault handler, releases every live region and
// closes the backing store. Resident dirty regions are not flushed;
// drain with Writeback first if their bytes must survive.
func Term() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return ErrNotInitialized
	}
	err := global.term()
	global = nil
	return err
}

// Alloc returns a region of size bytes backed by pageable memory. The
// returned slice has length and capacity size; its base is page-aligned.
func Alloc(size int) ([]byte, error) {
	e, err := current()
	if err != nil {
		return nil, err
	}
	return e.alloc(size)
}

// Free releases a region returned by Alloc. Freeing a slice that does
// not belong to the allocator, or freeing twice, is a no-op.
func Free(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return FreeAddr(uintptr(unsafe.Pointer(unsafe.SliceData(p))))
}

// FreeAddr releases the region whose base address is addr. Unknown
// addresses are ignored.
func FreeAddr(addr uintptr) error {
	e, err := current()
	if err != nil {
		return err
	}
	return e.free(addr)
}

// Writeback evicts one region from the head of the resident queue. An
// empty queue is a no-op. Calling it in a loop drains all residency,
// which is how dirty data is made durable before Term.
func Writeback() error {
	e, err := current()
	if err != nil {
		return err
	}
	return e.writeback()
}

// GetStats returns a snapshot of the usage counters.
func GetStats() (Stats, error) {
	e, err := current()
	if err != nil {
		return Stats{}, err
	}
	return e.snapshot(), nil
}

func current() (*engine, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil, ErrNotInitialized
	}
	return global, nil
}
