// Package fsalloc is a user-space virtual memory allocator that spills
// cold regions to a persistent on-disk store, keeping only a bounded
// working set resident in RAM.
//
// Alloc returns a byte region that behaves like ordinary memory: reads
// return previously written bytes even after the region's frames have
// been reclaimed, because cold regions round-trip through a keyed blob
// store. Residency is driven by page faults: a dedicated goroutine
// services userfaultfd events, loading region bytes on demand and
// write-protecting clean residents so the first write is observed as a
// clean-to-dirty transition. Eviction is strict FIFO over a fixed
// capacity fixed at Init.
//
// The engine assumes a single mutator. Fault handling is serialized with
// the API by a mutex, but concurrent allocation from multiple goroutines
// is not a supported workload. Fault resolution may allocate from the Go
// heap (store reads do); that is sound under the single-mutator model,
// where no third party can demand a stop-the-world while the mutator is
// suspended in a fault, but it is the reason the model is a hard
// requirement rather than a performance suggestion.
//
// Usage:
//
//	if err := fsalloc.Init("/tmp/swap.db", fsalloc.WithCapacity(1024)); err != nil {
//		...
//	}
//	defer fsalloc.Term()
//
//	buf, err := fsalloc.Alloc(4096)
//	buf[0] = 42           // faults, materializes, marks dirty
//	_ = fsalloc.Free(buf)
//
// Linux only: the engine is built on userfaultfd, mmap and
// madvise(MADV_DONTNEED).
package fsalloc
