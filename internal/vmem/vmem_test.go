package vmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAlignUp rounds byte counts to page multiples.
func TestAlignUp(t *testing.T) {
	pg := PageSize()

	assert.Equal(t, pg, AlignUp(1))
	assert.Equal(t, pg, AlignUp(pg))
	assert.Equal(t, 2*pg, AlignUp(pg+1))
	assert.Equal(t, 4*pg, AlignUp(3*pg+17))
	assert.Equal(t, 0, AlignUp(0))
}

// TestAlignDown masks addresses to page boundaries.
func TestAlignDown(t *testing.T) {
	pg := uintptr(PageSize())

	assert.Equal(t, pg, AlignDown(pg))
	assert.Equal(t, pg, AlignDown(pg+1))
	assert.Equal(t, 2*pg, AlignDown(3*pg-1))
	assert.Equal(t, uintptr(0), AlignDown(pg-1))
}

// TestBaseEmpty returns zero for an empty mapping.
func TestBaseEmpty(t *testing.T) {
	assert.Equal(t, uintptr(0), Base(nil))
}
