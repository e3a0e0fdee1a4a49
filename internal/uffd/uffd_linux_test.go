//go:build linux

package uffd

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psarna/fsalloc/internal/vmem"
)

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := New()
	if err != nil {
		t.Skipf("userfaultfd unavailable on this host: %v", err)
	}
	return h
}

// TestMissingFaultRoundTrip registers a page, touches it from the test
// goroutine and resolves the resulting missing fault from a serve
// goroutine with a known pattern.
func TestMissingFaultRoundTrip(t *testing.T) {
	h := newTestHandle(t)

	pg := vmem.PageSize()
	m, err := vmem.Reserve(pg)
	require.NoError(t, err)
	defer vmem.Release(m)
	base := vmem.Base(m)

	err = h.Register(base, len(m))
	if err != nil {
		h.Close()
		t.Skipf("cannot register range: %v", err)
	}

	pattern := bytes.Repeat([]byte{0xC3}, pg)
	var mu sync.Mutex
	var events []Event

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Serve(func(ev Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
			if err := h.Copy(base, pattern, false); err != nil {
				t.Errorf("copy: %v", err)
			}
		})
	}()

	assert.Equal(t, byte(0xC3), m[7], "read must observe the populated pattern")

	h.Shutdown()
	wg.Wait()
	require.NoError(t, h.Unregister(base, len(m)))
	require.NoError(t, h.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events, "the touch must have faulted")
	assert.False(t, events[0].Write, "a load is not a write fault")
	assert.False(t, events[0].WP)
	assert.Equal(t, base, vmem.AlignDown(events[0].Addr))
}

// TestWriteProtectCycle populates a page write-protected, then clears
// the protection from the serve goroutine when the write fault arrives.
func TestWriteProtectCycle(t *testing.T) {
	h := newTestHandle(t)

	pg := vmem.PageSize()
	m, err := vmem.Reserve(pg)
	require.NoError(t, err)
	defer vmem.Release(m)
	base := vmem.Base(m)

	if err := h.Register(base, len(m)); err != nil {
		h.Close()
		t.Skipf("cannot register range: %v", err)
	}

	var gotWP bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Serve(func(ev Event) {
			if ev.WP {
				gotWP = true
				if err := h.WriteUnprotect(base, len(m)); err != nil {
					t.Errorf("write-unprotect: %v", err)
				}
				return
			}
			// Missing fault: come up write-protected.
			if err := h.ZeroPopulate(base, len(m), true); err != nil {
				t.Errorf("zero-populate: %v", err)
			}
		})
	}()

	assert.Equal(t, byte(0), m[0]) // missing fault, populated WP
	m[0] = 9                       // WP fault, then unprotected
	assert.Equal(t, byte(9), m[0])

	h.Shutdown()
	wg.Wait()
	require.NoError(t, h.Close())
	assert.True(t, gotWP, "the write must arrive as a write-protect fault")
}
