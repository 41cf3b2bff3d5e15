package streamid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocDistinctFromLive(t *testing.T) {
	a := New(0xAB, 5)

	seen := map[ID]bool{}
	for i := 0; i < 5; i++ {
		id, ok := a.Alloc()
		require.True(t, ok)
		require.False(t, seen[id], "id %v reallocated while live", id)
		seen[id] = true
		require.True(t, a.IsOurs(id))
	}

	// population cap reached
	_, ok := a.Alloc()
	require.False(t, ok)
}

func TestFreeAllowsCookieReuseOnlyAfterCycleWrap(t *testing.T) {
	a := New(0x01, DefaultMaxLive)

	first, ok := a.Alloc()
	require.True(t, ok)
	a.Free(first)

	// Immediately re-allocating must not reissue the same cookie: the
	// cookie stays retired for the rest of this cursor cycle.
	second, ok := a.Alloc()
	require.True(t, ok)
	require.NotEqual(t, first, second)
}

func TestClearThenAllocIsStrictlyGreaterWithinCycle(t *testing.T) {
	a := New(0x02, DefaultMaxLive)

	var last ID
	for i := 0; i < 10; i++ {
		id, ok := a.Alloc()
		require.True(t, ok)
		last = id
	}

	a.Clear()
	require.Equal(t, 0, a.Len())

	next, ok := a.Alloc()
	require.True(t, ok)
	require.Greater(t, Cookie(next), Cookie(last))
}

func TestInvalidIsNeverOurs(t *testing.T) {
	a := New(0x03, DefaultMaxLive)
	require.False(t, a.IsOurs(Invalid))
}

func TestIsOursRejectsForeignTag(t *testing.T) {
	a := New(0x04, DefaultMaxLive)
	other := New(0x05, DefaultMaxLive)

	id, ok := other.Alloc()
	require.True(t, ok)
	require.False(t, a.IsOurs(id))
}

func TestCycleWrapRetiresReset(t *testing.T) {
	a := New(0x06, 1)
	a.cursor = cookieMax // force an imminent wrap

	id1, ok := a.Alloc()
	require.True(t, ok)
	require.Equal(t, uint32(cookieMax), Cookie(id1))
	a.Free(id1)

	id2, ok := a.Alloc()
	require.True(t, ok)
	require.Equal(t, uint32(0), Cookie(id2))
}
