//go:build linux

package fsalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackPoint struct {
	X, Y int64
	Tag  [48]byte
}

// TestTypedRoundTrip allocates a struct in pageable memory, pushes it
// through an eviction cycle and reads the fields back.
func TestTypedRoundTrip(t *testing.T) {
	newTestAllocator(t, 1)

	p, err := New[trackPoint]()
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.X, "New returns a zeroed value")

	p.X, p.Y = 42, -7
	p.Tag[0] = 'k'

	// Kick the struct's region out of residency.
	_, err = Alloc(8)
	require.NoError(t, err)

	assert.Equal(t, int64(42), p.X)
	assert.Equal(t, int64(-7), p.Y)
	assert.Equal(t, byte('k'), p.Tag[0])

	require.NoError(t, Del(p))
	require.NoError(t, Del(p), "double delete is a no-op")

	s := testStats(t)
	assert.Equal(t, uint64(1), s.Frees)
}

// TestTypedZeroSize still hands out a distinct allocation.
func TestTypedZeroSize(t *testing.T) {
	newTestAllocator(t, 4)

	p, err := New[struct{}]()
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NoError(t, Del(p))
}
