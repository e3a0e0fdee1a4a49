// Package vmem provides the virtual-memory primitives the paging engine is
// built on: anonymous reservations, page-frame discard, and page arithmetic.
//
// A reservation is returned as a byte slice covering the whole page-rounded
// range. The slice is the handle: Discard and Release take the same slice
// that Reserve returned.
package vmem

import (
	"os"
	"unsafe"
)

var pageSize = os.Getpagesize()

// PageSize returns the OS page size, queried once at startup.
func PageSize() int {
	return pageSize
}

// AlignDown rounds addr down to a page boundary.
func AlignDown(addr uintptr) uintptr {
	return addr &^ uintptr(pageSize-1)
}

// AlignUp rounds n up to a multiple of the page size.
func AlignUp(n int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// Base returns the starting address of a mapping.
func Base(m []byte) uintptr {
	if len(m) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(m)))
}
