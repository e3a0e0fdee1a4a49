//go:build linux

package uffd

// Constants and request structures for the userfaultfd(2) ioctl surface,
// declared from the Linux uapi (linux/userfaultfd.h). golang.org/x/sys
// carries the syscall number but not the request structs, so they live
// here. Layouts are the 64-bit encodings.

const (
	userModeOnly = 0x1 // UFFD_USER_MODE_ONLY, flag to userfaultfd(2)

	apiVersion = 0xaa // UFFD_API

	// ioctl request numbers.
	ioctlAPI          = 0xc018aa3f // UFFDIO_API
	ioctlRegister     = 0xc020aa00 // UFFDIO_REGISTER
	ioctlUnregister   = 0x8010aa01 // UFFDIO_UNREGISTER
	ioctlWake         = 0x8010aa02 // UFFDIO_WAKE
	ioctlCopy         = 0xc028aa03 // UFFDIO_COPY
	ioctlZeropage     = 0xc020aa04 // UFFDIO_ZEROPAGE
	ioctlWriteprotect = 0xc018aa06 // UFFDIO_WRITEPROTECT

	// UFFDIO_API features.
	featureExactAddress = 1 << 11 // UFFD_FEATURE_EXACT_ADDRESS

	// Register modes.
	registerModeMissing = 1 << 0
	registerModeWP      = 1 << 1

	// Copy modes. UFFDIO_WRITEPROTECT takes a mode too, but the engine
	// only ever clears protection (mode 0); protecting is done at
	// populate time through copyModeWP.
	copyModeWP = 1 << 1

	// Bits of uffdioRegister.Ioctls granted by the kernel for a range.
	bitWake         = 1 << 0x02
	bitCopy         = 1 << 0x03
	bitZeropage     = 1 << 0x04
	bitWriteprotect = 1 << 0x06

	// Event types.
	eventPagefault = 0x12

	// Pagefault message flags.
	pagefaultFlagWrite = 1 << 0
	pagefaultFlagWP    = 1 << 1
)

// uffdMsg is struct uffd_msg narrowed to the pagefault arm of the union.
type uffdMsg struct {
	Event   uint8
	_       [7]byte
	Flags   uint64
	Address uint64
	Ptid    uint32
	_       [4]byte
}

const msgSize = 32

type uffdioAPI struct {
	API      uint64
	Features uint64
	Ioctls   uint64
}

type uffdioRange struct {
	Start uint64
	Len   uint64
}

type uffdioRegister struct {
	Range  uffdioRange
	Mode   uint64
	Ioctls uint64
}

type uffdioCopy struct {
	Dst  uint64
	Src  uint64
	Len  uint64
	Mode uint64
	Copy int64
}

type uffdioZeropage struct {
	Range    uffdioRange
	Mode     uint64
	Zeropage int64
}

type uffdioWriteprotect struct {
	Range uffdioRange
	Mode  uint64
}
