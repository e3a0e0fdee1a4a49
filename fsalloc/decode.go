//go:build linux

package fsalloc

import "github.com/psarna/fsalloc/internal/uffd"

// accessKind classifies a fault as a read or a write.
type accessKind int

const (
	accessRead accessKind = iota
	accessWrite
)

// decodeAccess maps a fault event to the access that caused it. A set
// write or write-protect flag means a store; anything else is a load.
// This is the userfaultfd form of the classic error-code decoder (bit 1
// of the x86-64 fault error code).
func decodeAccess(ev uffd.Event) accessKind {
	if ev.Write || ev.WP {
		return accessWrite
	}
	return accessRead
}
