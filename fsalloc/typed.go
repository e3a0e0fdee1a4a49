package fsalloc

import "unsafe"

// New allocates a zeroed T in pageable memory. The pointer stays valid
// until Del or Term; the pointee may be evicted and reloaded between
// accesses without the caller noticing.
func New[T any]() (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		size = 1
	}
	b, err := Alloc(size)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// Del releases a value allocated with New. Like Free, it is idempotent.
func Del[T any](p *T) error {
	if p == nil {
		return nil
	}
	return FreeAddr(uintptr(unsafe.Pointer(p)))
}
