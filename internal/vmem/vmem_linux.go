//go:build linux

package vmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reserve maps a page-rounded anonymous private range of at least size
// bytes. The mapping is readable and writable at the kernel level; access
// control is layered on top by userfaultfd registration.
func Reserve(size int) ([]byte, error) {
	m, err := unix.Mmap(-1, 0, AlignUp(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("vmem: mmap %d bytes: %w", size, err)
	}
	return m, nil
}

// Discard tells the kernel the physical frames behind m are no longer
// needed. The reservation stays intact; the next access faults and the
// range reads back as zero unless repopulated first.
func Discard(m []byte) error {
	if err := unix.Madvise(m, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: madvise DONTNEED: %w", err)
	}
	return nil
}

// Release unmaps the reservation entirely.
func Release(m []byte) error {
	if err := unix.Munmap(m); err != nil {
		return fmt.Errorf("vmem: munmap: %w", err)
	}
	return nil
}
