package playerdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soundboard/playerctld/pkg/streamid"
)

func newPD(t *testing.T) *PlayerData {
	t.Helper()
	return New(streamid.New(1, streamid.DefaultMaxLive))
}

func TestVisibleStateDerivation(t *testing.T) {
	cases := []struct {
		state PlayerState
		speed float64
		want  VisibleState
	}{
		{Stopped, 1.0, VisStopped},
		{Buffering, 1.0, VisBuffering},
		{Paused, 1.0, VisPaused},
		{Playing, 1.0, VisPlaying},
		{Playing, 1.5, VisFastForward},
		{Playing, -1.0, VisFastRewind},
	}
	for _, c := range cases {
		pd := newPD(t)
		pd.SetPlayerState(c.state)
		pd.SetSpeed(c.speed)
		require.Equal(t, c.want, pd.VisibleState(), "state=%v speed=%v", c.state, c.speed)
	}
}

func TestSetPlayerStatePublishesTransitionOnChange(t *testing.T) {
	pd := newPD(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := pd.Subscribe(ctx)
	require.NoError(t, err)

	pd.SetPlayerState(Playing)

	select {
	case msg := <-ch:
		require.Equal(t, "player_state", msg.Metadata.Get("field"))
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("expected a transition to be published")
	}
}

func TestSetPlayerStateNoopOnSameValueDoesNotPublish(t *testing.T) {
	pd := newPD(t)
	pd.SetPlayerState(Playing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := pd.Subscribe(ctx)
	require.NoError(t, err)

	pd.SetPlayerState(Playing)

	select {
	case <-ch:
		t.Fatal("no transition expected for a no-op state set")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStreamHasChangedPromotesQueueHead(t *testing.T) {
	pd := newPD(t)
	id, err := pd.Queue.Append([]byte("k"), nil, nil, nil, "list-1", nil)
	require.NoError(t, err)

	require.NoError(t, pd.StreamHasChanged(id))
	require.Equal(t, id, pd.Queue.InFlight())
}

func TestStreamHasChangedMismatchTriggersPlayerFailed(t *testing.T) {
	pd := newPD(t)
	_, err := pd.Queue.Append([]byte("k"), nil, nil, nil, "list-1", nil)
	require.NoError(t, err)
	pd.SetSpeed(2.0)

	err = pd.StreamHasChanged(streamid.ID(0xdeadbeef))
	require.Error(t, err)
	require.Equal(t, 0, pd.Queue.Len())
	require.Equal(t, 1.0, pd.Speed())
}

func TestPlayerDroppedFromQueuePartitionsOursAndForeign(t *testing.T) {
	pd := newPD(t)
	id1, _ := pd.Queue.Append([]byte("a"), nil, nil, nil, "list-1", nil)
	id2, _ := pd.Queue.Append([]byte("b"), nil, nil, nil, "list-1", nil)
	alloc2 := streamid.New(2, streamid.DefaultMaxLive)
	foreignID, _ := alloc2.Alloc()

	isOurs := func(id streamid.ID) bool { return id != foreignID }
	err := pd.PlayerDroppedFromQueue([]streamid.ID{id1, foreignID, id2}, isOurs)
	require.NoError(t, err)
	require.Equal(t, 0, pd.Queue.Len())
}

func TestPlayerRejectedUnplayedStreamRemovesFromQueue(t *testing.T) {
	pd := newPD(t)
	id1, _ := pd.Queue.Append([]byte("a"), nil, nil, nil, "list-1", nil)
	id2, _ := pd.Queue.Append([]byte("b"), nil, nil, nil, "list-1", nil)

	require.NoError(t, pd.PlayerRejectedUnplayedStream(id2))
	require.Equal(t, []streamid.ID{id1}, pd.Queue.QueueIDs())
}

func TestRefCountDecrementsOnRemovalAndEvictsAtZero(t *testing.T) {
	pd := newPD(t)
	id1, _ := pd.Queue.Append([]byte("a"), nil, nil, nil, "list-1", nil)
	pd.RefList("list-1")
	require.Equal(t, 1, pd.ListRefCount("list-1"))

	_, err := pd.Queue.RemoveAnywhere(id1)
	require.NoError(t, err)
	require.Equal(t, 0, pd.ListRefCount("list-1"))
}
