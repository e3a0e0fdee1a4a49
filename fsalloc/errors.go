package fsalloc

import "errors"

var (
	// ErrInitialized indicates Init was called on an already-initialized
	// allocator.
	ErrInitialized = errors.New("fsalloc: already initialized")

	// ErrNotInitialized indicates an operation before Init or after Term.
	ErrNotInitialized = errors.New("fsalloc: not initialized")

	// ErrBadSize indicates an allocation request of zero or negative size.
	ErrBadSize = errors.New("fsalloc: allocation size must be positive")

	// ErrOutOfAddressSpace indicates the kernel refused a reservation.
	ErrOutOfAddressSpace = errors.New("fsalloc: out of address space")

	// ErrProtect indicates a protection-state change failed: the range
	// could not be registered for fault tracking or write-protected.
	ErrProtect = errors.New("fsalloc: protection change failed")

	// ErrDiscard indicates a page-frame discard failed.
	ErrDiscard = errors.New("fsalloc: page discard failed")

	// ErrHandlerInstall indicates the fault handler could not be
	// installed (no userfaultfd, or no permission for one).
	ErrHandlerInstall = errors.New("fsalloc: fault handler install failed")

	// ErrStoreInit indicates the backing store could not be opened.
	ErrStoreInit = errors.New("fsalloc: store init failed")

	// ErrStorePut indicates a write-back to the backing store failed.
	ErrStorePut = errors.New("fsalloc: store put failed")

	// ErrStoreGet indicates a load from the backing store failed.
	ErrStoreGet = errors.New("fsalloc: store get failed")

	// ErrStoreDel indicates deleting a stored region failed.
	ErrStoreDel = errors.New("fsalloc: store del failed")

	// ErrUnsupported indicates the platform lacks the required
	// virtual-memory machinery.
	ErrUnsupported = errors.New("fsalloc: unsupported platform")
)
