package fsalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueueFIFO checks admission order is eviction order.
func TestQueueFIFO(t *testing.T) {
	var q residentQueue
	for i := uintptr(1); i <= 5; i++ {
		q.push(i * 0x1000)
	}
	require.Equal(t, 5, q.len())

	for i := uintptr(1); i <= 5; i++ {
		base, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, i*0x1000, base)
	}
	_, ok := q.pop()
	assert.False(t, ok, "empty queue pops nothing")
}

// TestQueueGrowth wraps the ring past its initial capacity with
// interleaved pops.
func TestQueueGrowth(t *testing.T) {
	var q residentQueue
	next := uintptr(0x1000)
	expect := uintptr(0x1000)

	for round := 0; round < 3; round++ {
		for i := 0; i < queueInitialCapacity+7; i++ {
			q.push(next)
			next += 0x1000
		}
		for q.len() > 2 {
			base, ok := q.pop()
			require.True(t, ok)
			require.Equal(t, expect, base, "FIFO order must survive growth")
			expect += 0x1000
		}
	}
}

// TestQueueReset drops all state.
func TestQueueReset(t *testing.T) {
	var q residentQueue
	q.push(0x1000)
	q.push(0x2000)
	q.reset()
	assert.Equal(t, 0, q.len())
	_, ok := q.pop()
	assert.False(t, ok)
}
