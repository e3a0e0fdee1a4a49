package fsalloc

// Stats are the engine's usage counters. All four are monotonically
// non-decreasing between Init and Term.
type Stats struct {
	// Allocs counts successful Alloc calls.
	Allocs uint64
	// Frees counts regions actually released by Free.
	Frees uint64
	// CacheHits counts clean evictions: regions dropped from residency
	// without a store round-trip.
	CacheHits uint64
	// Writebacks counts dirty evictions flushed to the backing store.
	Writebacks uint64
}
