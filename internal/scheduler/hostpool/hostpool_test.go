package hostpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolAllHostsFree(t *testing.T) {
	pool := New(4)
	assert.Equal(t, 4, pool.Size())
	assert.Equal(t, 4, pool.FreeCount())
	assert.Equal(t, 0, pool.BusyCount())
}

func TestTryAllocateLowestIdsFirst(t *testing.T) {
	pool := New(4)

	a, ok := pool.TryAllocate(2)
	require.True(t, ok)
	assert.Equal(t, "0-1", a.String())
	assert.Equal(t, 2, pool.FreeCount())

	_, ok = pool.TryAllocate(3)
	assert.False(t, ok)

	b, ok := pool.TryAllocate(2)
	require.True(t, ok)
	assert.Equal(t, "2-3", b.String())
	assert.Equal(t, 0, pool.FreeCount())
}

func TestTryAllocateZeroWidth(t *testing.T) {
	pool := New(4)
	_, ok := pool.TryAllocate(0)
	assert.False(t, ok)
}

func TestTryAllocatePrefersContiguousRun(t *testing.T) {
	pool := New(6)
	_, ok := pool.TryAllocate(1)
	require.True(t, ok)
	b, ok := pool.TryAllocate(1)
	require.True(t, ok)
	_, ok = pool.TryAllocate(1)
	require.True(t, ok)
	d, ok := pool.TryAllocate(3)
	require.True(t, ok)
	assert.Equal(t, "3-5", d.String())

	require.NoError(t, pool.Release(b))
	require.NoError(t, pool.Release(d))
	// Free set is {1, 3-5}: a two-host request should come from the contiguous
	// run rather than starting at the lowest id.
	e, ok := pool.TryAllocate(2)
	require.True(t, ok)
	assert.Equal(t, "3-4", e.String())

	// Free set is {1, 5}: no contiguous run, so lowest ids first.
	f, ok := pool.TryAllocate(2)
	require.True(t, ok)
	assert.Equal(t, "1,5", f.String())
	assert.ElementsMatch(t, []int{1, 5}, f.Hosts())
	assert.Equal(t, 0, pool.FreeCount())
}

func TestReleaseCoalesces(t *testing.T) {
	pool := New(4)
	a, _ := pool.TryAllocate(2)
	b, _ := pool.TryAllocate(2)

	require.NoError(t, pool.Release(b))
	require.NoError(t, pool.Release(a))
	assert.Equal(t, 4, pool.FreeCount())

	c, ok := pool.TryAllocate(4)
	require.True(t, ok)
	assert.Equal(t, "0-3", c.String())
}

func TestDoubleReleaseIsAnError(t *testing.T) {
	pool := New(4)
	a, _ := pool.TryAllocate(2)
	require.NoError(t, pool.Release(a))
	assert.Error(t, pool.Release(a))
}

func TestReleaseOutsidePlatformIsAnError(t *testing.T) {
	small := New(2)
	big := New(8)
	a, _ := big.TryAllocate(4)
	assert.Error(t, small.Release(a))
}

func TestAllocationString(t *testing.T) {
	tests := map[string]struct {
		take     []int
		release  int // index into allocations to release before the final take
		width    int
		expected string
	}{
		"single host":    {take: []int{1}, release: -1, width: 1, expected: "1"},
		"range":          {take: []int{3}, release: -1, width: 3, expected: "3-5"},
		"wrap fragments": {take: []int{1, 1, 1}, release: 1, width: 1, expected: "1"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			pool := New(6)
			var allocs []Allocation
			for _, w := range tc.take {
				a, ok := pool.TryAllocate(w)
				require.True(t, ok)
				allocs = append(allocs, a)
			}
			if tc.release >= 0 {
				require.NoError(t, pool.Release(allocs[tc.release]))
			}
			a, ok := pool.TryAllocate(tc.width)
			require.True(t, ok)
			assert.Equal(t, tc.expected, a.String())
		})
	}
}
