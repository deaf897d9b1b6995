package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAllocatorAllocatesAscending(t *testing.T) {
	a := newIDAllocator()
	first, err := a.alloc()
	require.NoError(t, err)
	second, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, minContainerID, first)
	assert.Equal(t, minContainerID+1, second)
}

func TestIDAllocatorReusesReleasedIDs(t *testing.T) {
	a := newIDAllocator()
	id, err := a.alloc()
	require.NoError(t, err)
	a.release(id)

	reused, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, id, reused)
}

func TestIDAllocatorReserveAdvancesWatermark(t *testing.T) {
	a := newIDAllocator()
	a.reserve(500)

	next, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, 501, next)
}

func TestIDAllocatorReserveIgnoresLowerIDs(t *testing.T) {
	a := newIDAllocator()
	a.reserve(500)
	a.reserve(10)

	next, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, 501, next)
}

func TestIDAllocatorExhaustionFails(t *testing.T) {
	a := newIDAllocator()
	a.next = maxContainerID + 1
	_, err := a.alloc()
	assert.Error(t, err)
}
