package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundboard/playerctld/pkg/streamid"
)

func newAlloc() *streamid.Allocator {
	return streamid.New(1, streamid.DefaultMaxLive)
}

func TestAppendAssignsFloatingState(t *testing.T) {
	q := New(newAlloc(), nil)
	id, err := q.Append([]byte("key"), nil, nil, nil, "list-1", nil)
	require.NoError(t, err)

	rec, ok := q.Get(id)
	require.True(t, ok)
	require.Equal(t, Floating, rec.State)
	require.Equal(t, 1, q.Len())
}

func TestRemoveFrontPrefersInFlight(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	id2, _ := q.Append([]byte("b"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))

	removed, err := q.RemoveFront(map[streamid.ID]bool{id1: true, id2: true})
	require.NoError(t, err)
	require.Equal(t, id1, removed.ID)
	require.Equal(t, streamid.Invalid, q.InFlight())
}

func TestRemoveFrontDesyncWhenNeitherMatches(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))

	_, err := q.RemoveFront(map[streamid.ID]bool{streamid.ID(0xdead): true})
	require.ErrorIs(t, err, ErrDesync)
}

func TestRemoveFrontNoopWhenEmpty(t *testing.T) {
	q := New(newAlloc(), nil)
	removed, err := q.RemoveFront(map[streamid.ID]bool{streamid.ID(1): true})
	require.NoError(t, err)
	require.Nil(t, removed)
}

func TestRemoveAnywhereRefusesInFlight(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))

	_, err := q.RemoveAnywhere(id1)
	require.ErrorIs(t, err, ErrInFlightNotRemovable)
}

func TestRemoveAnywhereRemovesQueuedItem(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	id2, _ := q.Append([]byte("b"), nil, nil, nil, "l", nil)

	removed, err := q.RemoveAnywhere(id2)
	require.NoError(t, err)
	require.Equal(t, id2, removed.ID)
	require.Equal(t, []streamid.ID{id1}, q.QueueIDs())
}

func TestShiftPromotesHead(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)

	require.NoError(t, q.Shift(id1))
	require.Equal(t, id1, q.InFlight())

	rec, _ := q.Get(id1)
	require.Equal(t, Current, rec.State)
}

func TestShiftMismatchIsHardError(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	_ = id1

	err := q.Shift(streamid.ID(0xbeef))
	require.ErrorIs(t, err, ErrShiftMismatch)
}

func TestShiftNoopWhenAlreadyInFlight(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))
	require.NoError(t, q.Shift(id1))
	require.Equal(t, id1, q.InFlight())
}

func TestShiftIfNotFlyingSkipsWhenOccupied(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	id2, _ := q.Append([]byte("b"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))

	q.ShiftIfNotFlying()
	require.Equal(t, id1, q.InFlight())
	require.Equal(t, []streamid.ID{id2}, q.QueueIDs())
}

func TestShiftIfNotFlyingPromotesWhenEmpty(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)

	q.ShiftIfNotFlying()
	require.Equal(t, id1, q.InFlight())
}

func TestClearRemovesEverythingAndFreesIDs(t *testing.T) {
	alloc := newAlloc()
	q := New(alloc, nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	_, _ = q.Append([]byte("b"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))

	q.Clear()
	require.Equal(t, 0, q.Len())
	require.Equal(t, 0, alloc.Len())
}

func TestClearIfFiltersByPredicate(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "list-drop", nil)
	id2, _ := q.Append([]byte("b"), nil, nil, nil, "list-keep", nil)

	q.ClearIf(func(s *Stream) bool { return s.ListID == "list-drop" })

	_, ok1 := q.Get(id1)
	require.False(t, ok1)
	_, ok2 := q.Get(id2)
	require.True(t, ok2)
}

func TestOnRemoveCallbackFiresForEveryRemoval(t *testing.T) {
	var removedIDs []streamid.ID
	q := New(newAlloc(), func(s *Stream) { removedIDs = append(removedIDs, s.ID) })

	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	id2, _ := q.Append([]byte("b"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))
	q.Clear()

	require.ElementsMatch(t, []streamid.ID{id1, id2}, removedIDs)
}

func TestCheckInvariantsPassesOnHealthyQueue(t *testing.T) {
	q := New(newAlloc(), nil)
	id1, _ := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	_, _ = q.Append([]byte("b"), nil, nil, nil, "l", nil)
	require.NoError(t, q.Shift(id1))

	require.NoError(t, q.CheckInvariants())
}

func TestAppendFailsWhenAllocatorFull(t *testing.T) {
	alloc := streamid.New(1, 1)
	q := New(alloc, nil)

	_, err := q.Append([]byte("a"), nil, nil, nil, "l", nil)
	require.NoError(t, err)

	_, err = q.Append([]byte("b"), nil, nil, nil, "l", nil)
	require.ErrorIs(t, err, ErrFull)
}
