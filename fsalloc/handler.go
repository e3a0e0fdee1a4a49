//go:build linux

package fsalloc

import (
	"fmt"

	"github.com/psarna/fsalloc/internal/uffd"
	"github.com/psarna/fsalloc/internal/vmem"
)

// handleFault services one page-fault event. It runs on the serve
// goroutine; the faulting thread sleeps in the kernel until the event is
// resolved by populate, write-unprotect or wake.
//
// VM and store failures in here cannot be surfaced to the suspended
// mutator, so they are fatal.
func (e *engine) handleFault(ev uffd.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	page := vmem.AlignDown(ev.Addr)
	base, ok := e.pages[page]
	if !ok {
		// Not ours: a region freed with its fault in flight. Unregister
		// already woke any waiter, so a failing wake is historical too.
		_ = e.u.Wake(page, vmem.PageSize())
		return
	}
	info := e.regions[base]

	if e.u.ExactAddress() && int(ev.Addr-base) >= info.size {
		// Inside an owned page but past the allocation. Only a fault
		// gets here, so tail accesses are caught only while the region
		// is not resident.
		e.foreign(ev.Addr)
		// If the hook returns, fall through and materialize so the
		// thread can be scheduled again.
	}

	if ev.WP {
		// Write to a clean resident: promote in place. No store I/O,
		// no queue movement.
		info.dirty = true
		mustResolve(e.u.WriteUnprotect(base, len(info.m)))
		return
	}

	write := decodeAccess(ev) == accessWrite
	if write {
		info.dirty = true
	}

	// Materialize the whole region: from the store if it has ever been
	// written back, from zero pages otherwise. Read faults come up
	// write-protected so the next write is observed; write faults come
	// up writable.
	if info.key != 0 {
		data, err := e.st.Get(info.key)
		if err != nil {
			mustResolve(fmt.Errorf("%w: %v", ErrStoreGet, err))
		}
		mustResolve(e.u.Copy(base, data, !write))
	} else {
		mustResolve(e.u.ZeroPopulate(base, len(info.m), !write))
	}

	// A Fresh region is admitted by Alloc and is still queued; only the
	// evicted-to-resident transition re-admits.
	if !info.cached {
		info.cached = true
		mustResolve(e.admitLocked(base))
	}
}

// mustResolve aborts on failures inside the fault handler, which runs on
// behalf of a thread that cannot observe an error return.
func mustResolve(err error) {
	if err != nil {
		panic(fmt.Sprintf("fsalloc: fault handler: %v", err))
	}
}
