// Package playerdata holds PlayerData (spec.md §3, §4.D): the single
// source of truth for what the external player is doing, what the
// user wants it to do, and the queue of streams handed to it. Every
// setter publishes a Transition onto an in-process bus so interested
// observers (logging, metrics, the UI push channel) can react without
// PlayerData holding a bare callback slice.
package playerdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/pkg/metadata"
	"github.com/soundboard/playerctld/pkg/queue"
	"github.com/soundboard/playerctld/pkg/streamid"
)

// TransitionsTopic is the watermill topic every PlayerData setter
// publishes its Transition to.
const TransitionsTopic = "playerdata.transitions"

// PlayerState is what the external player reports (spec.md §3).
type PlayerState int

const (
	Stopped PlayerState = iota
	Buffering
	Playing
	Paused
)

func (s PlayerState) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Buffering:
		return "BUFFERING"
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Intention is what the user wants the player to do (spec.md §3).
type Intention int

const (
	Nothing Intention = iota
	Stopping
	Pausing
	Listening
	SkippingPaused
	SkippingLive
)

func (i Intention) String() string {
	switch i {
	case Nothing:
		return "NOTHING"
	case Stopping:
		return "STOPPING"
	case Pausing:
		return "PAUSING"
	case Listening:
		return "LISTENING"
	case SkippingPaused:
		return "SKIPPING_PAUSED"
	case SkippingLive:
		return "SKIPPING_LIVE"
	default:
		return "UNKNOWN"
	}
}

// VisibleState is the UI-facing state derived from (player_state, speed)
// per the table in spec.md §4.D.
type VisibleState int

const (
	VisStopped VisibleState = iota
	VisBuffering
	VisPaused
	VisPlaying
	VisFastForward
	VisFastRewind
)

func (v VisibleState) String() string {
	switch v {
	case VisStopped:
		return "STOPPED"
	case VisBuffering:
		return "BUFFERING"
	case VisPaused:
		return "PAUSED"
	case VisPlaying:
		return "PLAYING"
	case VisFastForward:
		return "FAST_FORWARD"
	case VisFastRewind:
		return "FAST_REWIND"
	default:
		return "UNKNOWN"
	}
}

// deriveVisibleState implements the table in spec.md §4.D.
func deriveVisibleState(state PlayerState, speed float64) VisibleState {
	switch state {
	case Stopped:
		return VisStopped
	case Buffering:
		return VisBuffering
	case Paused:
		return VisPaused
	case Playing:
		switch {
		case speed == 1.0:
			return VisPlaying
		case speed > 0:
			return VisFastForward
		default:
			return VisFastRewind
		}
	default:
		return VisStopped
	}
}

// NowPlaying is the most recently reported now-playing snapshot
// (spec.md §3).
type NowPlaying struct {
	StreamID   streamid.ID
	URL        string
	Metadata   *metadata.Set
	PositionMs int64
	DurationMs int64
}

// Transition describes one PlayerData field change. Setters publish it
// to TransitionsTopic as a message whose payload is the text
// "field: old -> new" and whose "field" metadata names the field; At is
// not carried in the message. SetNowPlaying publishes on every call,
// the other setters only when the value changes.
type Transition struct {
	Field string
	Old   any
	New   any
	At    time.Time
}

// PlayerData is the player-facing model the control core maintains.
// Its lock covers the fields below other than Queue; the QueuedStreams
// it owns is guarded by its own mutex, and the PlayerData lock is not
// held around Queue calls.
type PlayerData struct {
	mu sync.Mutex

	state     PlayerState
	intention Intention
	speed     float64
	now       NowPlaying

	referencedLists map[string]int

	Queue *queue.QueuedStreams

	publisher  message.Publisher
	subscriber message.Subscriber
	clock      func() time.Time
}

// New builds a PlayerData backed by alloc for its stream-id minting
// and publishing transitions over an in-process watermill gochannel
// bus (spec.md §3.2).
func New(alloc *streamid.Allocator) *PlayerData {
	pd := &PlayerData{
		speed:           1.0,
		referencedLists: make(map[string]int),
		clock:           time.Now,
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, watermill.NopLogger{})
	pd.publisher = pubSub
	pd.subscriber = pubSub

	pd.Queue = queue.New(alloc, pd.onQueueRemove)
	return pd
}

// Subscribe returns a channel of every transition message (see
// Transition) published from now on. The caller must drain it; the underlying gochannel subscription
// is closed when ctx is done.
func (pd *PlayerData) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return pd.subscriber.Subscribe(ctx, TransitionsTopic)
}

func (pd *PlayerData) publish(field string, oldV, newV any) {
	t := Transition{Field: field, Old: oldV, New: newV, At: pd.clock()}
	payload := fmt.Sprintf("%s: %v -> %v", t.Field, t.Old, t.New)
	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	msg.Metadata.Set("field", field)
	if err := pd.publisher.Publish(TransitionsTopic, msg); err != nil {
		corelog.For("playerdata").Debug().Err(err).Str("field", field).Msg("transition publish dropped")
	}
}

// SetPlayerState records a new player-reported state.
func (pd *PlayerData) SetPlayerState(s PlayerState) {
	pd.mu.Lock()
	old := pd.state
	pd.state = s
	pd.mu.Unlock()
	if old != s {
		pd.publish("player_state", old, s)
	}
}

// PlayerState returns the current player-reported state.
func (pd *PlayerData) PlayerState() PlayerState {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.state
}

// SetIntention records a new user intention.
func (pd *PlayerData) SetIntention(i Intention) {
	pd.mu.Lock()
	old := pd.intention
	pd.intention = i
	pd.mu.Unlock()
	if old != i {
		pd.publish("user_intention", old, i)
	}
}

// Intention returns the current user intention.
func (pd *PlayerData) Intention() Intention {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.intention
}

// SetSpeed records a new playback speed.
func (pd *PlayerData) SetSpeed(speed float64) {
	pd.mu.Lock()
	old := pd.speed
	pd.speed = speed
	pd.mu.Unlock()
	if old != speed {
		pd.publish("playback_speed", old, speed)
	}
}

// Speed returns the current playback speed.
func (pd *PlayerData) Speed() float64 {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.speed
}

// VisibleState derives the UI-facing state from the current
// (player_state, speed) pair.
func (pd *PlayerData) VisibleState() VisibleState {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return deriveVisibleState(pd.state, pd.speed)
}

// SetNowPlaying records a new now-playing snapshot.
func (pd *PlayerData) SetNowPlaying(np NowPlaying) {
	pd.mu.Lock()
	old := pd.now
	pd.now = np
	pd.mu.Unlock()
	pd.publish("now_playing", old.StreamID, np.StreamID)
}

// NowPlaying returns the current now-playing snapshot.
func (pd *PlayerData) NowPlaying() NowPlaying {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.now
}

// UpdatePosition updates only the position/duration of the current
// now-playing snapshot, e.g. from a STREAM_POSITION notification.
func (pd *PlayerData) UpdatePosition(positionMs, durationMs int64) {
	pd.mu.Lock()
	pd.now.PositionMs = positionMs
	pd.now.DurationMs = durationMs
	pd.mu.Unlock()
}

// RefList increments the refcount for listID, pinning any broker-side
// cache entry for it (spec.md §3, §5 "shared resource policy").
func (pd *PlayerData) RefList(listID string) {
	if listID == "" {
		return
	}
	pd.mu.Lock()
	pd.referencedLists[listID]++
	pd.mu.Unlock()
}

// ListRefCount reports the current refcount for listID, for tests and
// diagnostics.
func (pd *PlayerData) ListRefCount(listID string) int {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.referencedLists[listID]
}

// onQueueRemove is QueuedStreams' on_remove callback: it decrements
// the refcount of the stream's originating list, evicting the entry
// once it reaches zero (the broker is then free to evict its cache).
func (pd *PlayerData) onQueueRemove(s *queue.Stream) {
	if s.ListID == "" {
		return
	}
	pd.mu.Lock()
	n := pd.referencedLists[s.ListID] - 1
	if n <= 0 {
		delete(pd.referencedLists, s.ListID)
	} else {
		pd.referencedLists[s.ListID] = n
	}
	pd.mu.Unlock()
}

// PlayerFailed clears the queue and resets playback speed to nominal.
// Called whenever a queue invariant violation or shift mismatch
// compromises the model (spec.md §7).
func (pd *PlayerData) PlayerFailed() {
	pd.Queue.Clear()
	pd.SetSpeed(1.0)
	corelog.For("playerdata").Error().Msg("BUG player_failed: queue cleared, speed reset")
}

// StreamHasChanged implements spec.md §4.D: promotes nextID into the
// in-flight slot. On failure (a shift mismatch), the model is
// considered compromised and PlayerFailed is invoked.
func (pd *PlayerData) StreamHasChanged(nextID streamid.ID) error {
	if err := pd.Queue.Shift(nextID); err != nil {
		pd.PlayerFailed()
		return err
	}
	return nil
}

// PlayerDroppedFromQueue implements spec.md §4.D: partitions ids into
// ours/foreign using isOurs, then repeatedly removes from the front of
// the queue until either the ours set is exhausted or the queue is
// empty. A desync (front matches neither) is propagated as an error.
func (pd *PlayerData) PlayerDroppedFromQueue(ids []streamid.ID, isOurs func(streamid.ID) bool) error {
	ours := make(map[streamid.ID]bool)
	for _, id := range ids {
		if isOurs == nil || isOurs(id) {
			ours[id] = true
		}
	}
	for len(ours) > 0 {
		rec, err := pd.Queue.RemoveFront(ours)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		delete(ours, rec.ID)
	}
	return nil
}

// PlayerRejectedUnplayedStream implements spec.md §4.D: removes id
// from anywhere in the queue (never the in-flight slot).
func (pd *PlayerData) PlayerRejectedUnplayedStream(id streamid.ID) error {
	_, err := pd.Queue.RemoveAnywhere(id)
	return err
}
