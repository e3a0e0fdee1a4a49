//go:build linux

package fsalloc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psarna/fsalloc/internal/vmem"
)

// newTestAllocator initializes the global engine against a throwaway
// store file and tears it down with the test. Hosts that cannot open a
// userfaultfd (no permission, old kernel) skip.
func newTestAllocator(t *testing.T, capacity int, opts ...Option) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.db")
	all := append([]Option{WithCapacity(capacity)}, opts...)
	err := Init(path, all...)
	if errors.Is(err, ErrHandlerInstall) || errors.Is(err, ErrProtect) {
		t.Skipf("userfaultfd unavailable on this host: %v", err)
	}
	require.NoError(t, err, "Init should succeed")
	t.Cleanup(func() {
		if err := Term(); err != nil && !errors.Is(err, ErrNotInitialized) {
			t.Errorf("Term: %v", err)
		}
	})
}

func testStats(t *testing.T) Stats {
	t.Helper()
	s, err := GetStats()
	require.NoError(t, err)
	return s
}

func queueLen(t *testing.T) int {
	t.Helper()
	e, err := current()
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.len()
}

func tableLen(t *testing.T) int {
	t.Helper()
	e, err := current()
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.regions)
}

func exactAddresses(t *testing.T) bool {
	t.Helper()
	e, err := current()
	require.NoError(t, err)
	return e.u.ExactAddress()
}

// TestCapacityOneThrash allocates four regions under a single-region
// budget, writes a distinct value to each, and reads them all back
// through store round-trips.
func TestCapacityOneThrash(t *testing.T) {
	newTestAllocator(t, 1)

	regions := make([][]byte, 4)
	for i := range regions {
		b, err := Alloc(8)
		require.NoError(t, err, "Alloc %d should succeed", i)
		regions[i] = b
	}
	for i, b := range regions {
		binary.LittleEndian.PutUint64(b, uint64(i*10))
	}
	for i, b := range regions {
		assert.Equal(t, uint64(i*10), binary.LittleEndian.Uint64(b),
			"region %d should read back its value", i)
	}

	s := testStats(t)
	assert.Equal(t, uint64(4), s.Allocs)
	assert.GreaterOrEqual(t, s.Writebacks, uint64(3),
		"thrashing four dirty regions through one slot needs at least three flushes")
}

// TestCleanEvictionPath reads a never-written region, then allocates
// past capacity: the eviction must be a clean discard, not a store
// write.
func TestCleanEvictionPath(t *testing.T) {
	newTestAllocator(t, 1)

	r0, err := Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, byte(0), r0[0], "fresh region reads zero-filled")

	_, err = Alloc(64)
	require.NoError(t, err)

	s := testStats(t)
	assert.Equal(t, uint64(1), s.CacheHits, "clean eviction should be a cache hit")
	assert.Equal(t, uint64(0), s.Writebacks, "no dirty data, no store I/O")
}

// TestDirtyPromotionWithoutIO verifies the read-then-write transition on
// a resident region touches no store: the write fault only lifts write
// protection.
func TestDirtyPromotionWithoutIO(t *testing.T) {
	newTestAllocator(t, 2)

	r0, err := Alloc(16)
	require.NoError(t, err)

	assert.Equal(t, byte(0), r0[0]) // read fault: resident, clean
	r0[0] = 7                       // write fault: promote in place

	s := testStats(t)
	assert.Equal(t, uint64(0), s.Writebacks)
	assert.Equal(t, byte(7), r0[0], "written value observable after promotion")
}

// TestLargeRegionRoundTrip pages a multi-page region out as a unit and
// back, expecting the byte pattern to survive exactly.
func TestLargeRegionRoundTrip(t *testing.T) {
	newTestAllocator(t, 2)
	pg := vmem.PageSize()

	large, err := Alloc(4 * pg)
	require.NoError(t, err)
	for i := range large {
		large[i] = byte(i)
	}

	// Force the large region out through four single-page admissions.
	for i := 0; i < 4; i++ {
		_, err := Alloc(pg)
		require.NoError(t, err, "filler alloc %d", i)
	}

	for i := range large {
		if large[i] != byte(i) {
			t.Fatalf("byte %d: got %#x, want %#x", i, large[i], byte(i))
		}
	}
	s := testStats(t)
	assert.GreaterOrEqual(t, s.Writebacks, uint64(1), "the dirty large region must have been flushed")
}

// TestFreeIdempotent frees the same region twice; the second call is a
// no-op and only real releases are counted.
func TestFreeIdempotent(t *testing.T) {
	newTestAllocator(t, 4)

	b, err := Alloc(32)
	require.NoError(t, err)

	require.NoError(t, Free(b))
	require.NoError(t, Free(b), "second free is a no-op")

	s := testStats(t)
	assert.Equal(t, uint64(1), s.Allocs)
	assert.Equal(t, uint64(1), s.Frees)
	assert.Equal(t, 0, tableLen(t), "allocation table must be empty")
}

// TestFreeUnknownAddress ignores addresses the allocator never issued.
func TestFreeUnknownAddress(t *testing.T) {
	newTestAllocator(t, 4)

	require.NoError(t, FreeAddr(uintptr(vmem.PageSize())*0x1000))
	s := testStats(t)
	assert.Equal(t, uint64(0), s.Frees)
}

// TestForeignTailAccess faults on a byte inside an owned page but past
// the allocation's logical size; the foreign-access hook must fire with
// the exact address.
func TestForeignTailAccess(t *testing.T) {
	var called atomic.Bool
	var at atomic.Uintptr
	newTestAllocator(t, 4, WithForeignAccessFunc(func(addr uintptr) {
		called.Store(true)
		at.Store(addr)
	}))
	if !exactAddresses(t) {
		t.Skip("kernel does not report exact fault addresses")
	}

	b, err := Alloc(16)
	require.NoError(t, err)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(b)))

	// First touch lands past the allocation, still inside its page.
	v := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(unsafe.SliceData(b))) + 100))
	assert.Equal(t, byte(0), v)

	assert.True(t, called.Load(), "tail access must invoke the foreign-access hook")
	assert.Equal(t, base+100, at.Load())
}

// TestResidencyBound allocates well past capacity and checks the queue
// stays at the budget with every overflow accounted as a hit or a
// write-back.
func TestResidencyBound(t *testing.T) {
	const capacity, n = 3, 10
	newTestAllocator(t, capacity)

	for i := 0; i < n; i++ {
		b, err := Alloc(8)
		require.NoError(t, err)
		b[0] = byte(i + 1)
	}

	assert.Equal(t, capacity, queueLen(t), "resident queue must sit at capacity")
	s := testStats(t)
	assert.Equal(t, uint64(n-capacity), s.CacheHits+s.Writebacks,
		"every admission past capacity evicts exactly one region")
}

// TestAlternatingAccessNoSpuriousWritebacks hammers one address with
// write/read pairs; after the first materialization there is nothing
// left to fault on.
func TestAlternatingAccessNoSpuriousWritebacks(t *testing.T) {
	newTestAllocator(t, 2)

	b, err := Alloc(8)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		b[0] = byte(i)
		require.Equal(t, byte(i), b[0])
	}

	s := testStats(t)
	assert.Equal(t, uint64(0), s.Writebacks)
	assert.Equal(t, uint64(0), s.CacheHits)
}

// TestBoundarySizes round-trips regions of awkward sizes through a
// single-slot cache.
func TestBoundarySizes(t *testing.T) {
	pg := vmem.PageSize()
	sizes := []int{1, pg, pg + 1, 3*pg + 17}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			newTestAllocator(t, 1)

			b, err := Alloc(size)
			require.NoError(t, err)
			require.Len(t, b, size)
			for i := range b {
				b[i] = byte(i*7 + 3)
			}

			// Evict through a filler admission, then read back.
			_, err = Alloc(1)
			require.NoError(t, err)

			for i := range b {
				if b[i] != byte(i*7+3) {
					t.Fatalf("size %d: byte %d corrupted after eviction", size, i)
				}
			}
			require.NoError(t, Free(b))
		})
	}
}

// TestWritebackDrain empties the resident queue by hand, then pages the
// flushed data back in.
func TestWritebackDrain(t *testing.T) {
	newTestAllocator(t, 4)

	regions := make([][]byte, 3)
	for i := range regions {
		b, err := Alloc(8)
		require.NoError(t, err)
		b[0] = byte(0x40 + i)
		regions[i] = b
	}

	for queueLen(t) > 0 {
		require.NoError(t, Writeback())
	}
	s := testStats(t)
	assert.Equal(t, uint64(3), s.Writebacks, "three dirty regions drained")

	for i, b := range regions {
		assert.Equal(t, byte(0x40+i), b[0], "region %d reloads from the store", i)
	}
}

// TestWritebackEmptyQueue is a no-op, not an error.
func TestWritebackEmptyQueue(t *testing.T) {
	newTestAllocator(t, 4)
	require.NoError(t, Writeback())
}

// TestDoubleInit rejects a second Init without Term.
func TestDoubleInit(t *testing.T) {
	newTestAllocator(t, 4)
	err := Init(filepath.Join(t.TempDir(), "other.db"))
	assert.ErrorIs(t, err, ErrInitialized)
}

// TestUseBeforeInit rejects Alloc, Writeback, Term and GetStats before
// Init.
func TestUseBeforeInit(t *testing.T) {
	_, err := Alloc(8)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, Writeback(), ErrNotInitialized)
	assert.ErrorIs(t, Term(), ErrNotInitialized)
	_, err = GetStats()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// TestBadSize rejects empty and negative allocations.
func TestBadSize(t *testing.T) {
	newTestAllocator(t, 4)
	_, err := Alloc(0)
	assert.ErrorIs(t, err, ErrBadSize)
	_, err = Alloc(-3)
	assert.ErrorIs(t, err, ErrBadSize)
}

// TestFreshRegionReadsZero documents the zero-fill behavior of fresh
// regions, including after a clean eviction.
func TestFreshRegionReadsZero(t *testing.T) {
	newTestAllocator(t, 1)

	b, err := Alloc(128)
	require.NoError(t, err)
	for i := range b {
		require.Zero(t, b[i])
	}

	// Clean-evict and come back: still zero.
	_, err = Alloc(8)
	require.NoError(t, err)
	for i := range b {
		require.Zero(t, b[i])
	}
}
