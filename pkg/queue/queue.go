// Package queue implements QueuedStreams (spec.md §3, §4.C): the
// ordered queue of streams handed to the player plus the single
// "in-flight" slot the player currently holds as its active item.
package queue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/internal/metrics"
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/metadata"
	"github.com/soundboard/playerctld/pkg/streamid"
)

// State is a QueuedStream's lifecycle state (spec.md §3).
type State int

const (
	Floating State = iota
	Queued
	Current
	AboutToDie
)

func (s State) String() string {
	switch s {
	case Floating:
		return "FLOATING"
	case Queued:
		return "QUEUED"
	case Current:
		return "CURRENT"
	case AboutToDie:
		return "ABOUT_TO_DIE"
	default:
		return "UNKNOWN"
	}
}

// Stream is one entry in a QueuedStreams container.
type Stream struct {
	ID    streamid.ID
	State State

	StreamKey    []byte
	Metadata     *metadata.Set
	DirectURIs   []string
	AirableLinks []string

	ListID            string
	OriginatingCursor crawler.Cursor
}

// OnRemove is invoked once for every Stream a QueuedStreams drops,
// from any of its removal paths. PlayerData uses this to decrement
// list-id reference counts (spec.md §3's "referenced_lists").
type OnRemove func(*Stream)

var (
	// ErrFull is returned by Append when the id allocator has reached
	// its live-population cap.
	ErrFull = errors.New("queue: stream id allocator is full")
	// ErrDesync is returned when a removal is requested for ids that
	// match neither the in-flight slot nor the queue head — the core's
	// bookkeeping has drifted from what the player actually reports.
	ErrDesync = errors.New("queue: removal request does not match in-flight or queue head (desync)")
	// ErrShiftMismatch is returned by Shift when the promoted id does
	// not match what the caller expected.
	ErrShiftMismatch = errors.New("queue: shift produced an id different from the one expected")
	// ErrInFlightNotRemovable is returned by RemoveAnywhere when asked
	// to remove the in-flight stream — that is always a caller bug.
	ErrInFlightNotRemovable = errors.New("queue: remove_anywhere refuses to touch the in-flight stream")
	// ErrNotFound is returned when an id is not present in the
	// container at all.
	ErrNotFound = errors.New("queue: stream id not found")
)

// QueuedStreams is the ordered queue plus the single in-flight slot
// (spec.md §4.C). All mutating methods are safe for concurrent use;
// each call takes the container's own mutex, and callers do not hold
// the PlayerData lock around these calls.
type QueuedStreams struct {
	mu sync.Mutex

	alloc    *streamid.Allocator
	onRemove OnRemove

	queue    []streamid.ID
	inFlight streamid.ID
	byID     map[streamid.ID]*Stream
}

// New returns an empty QueuedStreams backed by alloc. onRemove may be
// nil.
func New(alloc *streamid.Allocator, onRemove OnRemove) *QueuedStreams {
	return &QueuedStreams{
		alloc:    alloc,
		onRemove: onRemove,
		inFlight: streamid.Invalid,
		byID:     make(map[streamid.ID]*Stream),
	}
}

// Append allocates a new id, constructs a FLOATING Stream and pushes
// it onto the tail of the queue. Returns ErrFull if the id allocator
// is at capacity.
func (q *QueuedStreams) Append(streamKey []byte, md *metadata.Set, directURIs, airableLinks []string, listID string, originatingCursor crawler.Cursor) (streamid.ID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.alloc.Alloc()
	if !ok {
		return streamid.Invalid, ErrFull
	}

	q.byID[id] = &Stream{
		ID:                id,
		State:             Floating,
		StreamKey:         streamKey,
		Metadata:          md,
		DirectURIs:        directURIs,
		AirableLinks:      airableLinks,
		ListID:            listID,
		OriginatingCursor: originatingCursor,
	}
	q.queue = append(q.queue, id)
	metrics.QueueDepth.Set(float64(q.lenLocked()))
	return id, nil
}

// MarkQueued transitions id from FLOATING to QUEUED, e.g. once the
// stream has been handed to and acknowledged by the player.
func (q *QueuedStreams) MarkQueued(id streamid.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rec, ok := q.byID[id]; ok {
		rec.State = Queued
	}
}

// Get returns the record for id, if the container still holds it.
func (q *QueuedStreams) Get(id streamid.ID) (*Stream, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.byID[id]
	return rec, ok
}

// InFlight returns the id of the in-flight stream, or streamid.Invalid
// if none.
func (q *QueuedStreams) InFlight() streamid.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Head returns the id at the front of the (non-in-flight) queue, or
// streamid.Invalid if the queue is empty.
func (q *QueuedStreams) Head() streamid.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return streamid.Invalid
	}
	return q.queue[0]
}

// Len returns the total population: queue length plus one if
// in-flight is valid (spec.md §3's invariant).
func (q *QueuedStreams) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *QueuedStreams) lenLocked() int {
	n := len(q.queue)
	if q.inFlight != streamid.Invalid {
		n++
	}
	return n
}

// QueueIDs returns a copy of the queue's id order (excludes in-flight).
func (q *QueuedStreams) QueueIDs() []streamid.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]streamid.ID, len(q.queue))
	copy(out, q.queue)
	return out
}

// removeLocked drops id from whichever of (in-flight, queue) holds it,
// frees its allocator slot, and invokes onRemove. Callers must hold q.mu.
func (q *QueuedStreams) removeLocked(id streamid.ID, nextState State) *Stream {
	rec, ok := q.byID[id]
	if !ok {
		return nil
	}
	rec.State = nextState
	delete(q.byID, id)
	q.alloc.Free(id)

	if q.inFlight == id {
		q.inFlight = streamid.Invalid
	} else {
		for i, qid := range q.queue {
			if qid == id {
				q.queue = append(q.queue[:i], q.queue[i+1:]...)
				break
			}
		}
	}

	metrics.QueueDepth.Set(float64(q.lenLocked()))
	if q.onRemove != nil {
		q.onRemove(rec)
	}
	return rec
}

// RemoveFront removes whichever of (in-flight, queue-head) appears in
// dropSet. It checks in-flight first, since that is the player's
// actively-held slot. If neither candidate is present at all, it is a
// silent no-op (nothing to remove). If at least one candidate exists
// but dropSet names neither, that is a desync: the player reported
// dropping something the core's bookkeeping doesn't expect at the
// front of its own view.
func (q *QueuedStreams) RemoveFront(dropSet map[streamid.ID]bool) (*Stream, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight != streamid.Invalid {
		if dropSet[q.inFlight] {
			return q.removeLocked(q.inFlight, AboutToDie), nil
		}
		if len(q.queue) > 0 && dropSet[q.queue[0]] {
			return q.removeLocked(q.queue[0], AboutToDie), nil
		}
		corelog.For("queue").Error().
			Str("in_flight", q.inFlight.String()).
			Msg("BUG remove_front: dropped id matches neither in-flight nor queue head")
		metrics.ObserveDesync("remove_front")
		return nil, ErrDesync
	}

	if len(q.queue) > 0 {
		if dropSet[q.queue[0]] {
			return q.removeLocked(q.queue[0], AboutToDie), nil
		}
		corelog.For("queue").Error().
			Str("head", q.queue[0].String()).
			Msg("BUG remove_front: dropped id does not match queue head")
		metrics.ObserveDesync("remove_front")
		return nil, ErrDesync
	}

	return nil, nil
}

// RemoveAnywhere removes id from the queue (not the in-flight slot).
// Used only for player-rejected unplayed streams per spec.md §3.
func (q *QueuedStreams) RemoveAnywhere(id streamid.ID) (*Stream, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == q.inFlight {
		return nil, ErrInFlightNotRemovable
	}
	if _, ok := q.byID[id]; !ok {
		return nil, ErrNotFound
	}
	for _, qid := range q.queue {
		if qid == id {
			return q.removeLocked(id, AboutToDie), nil
		}
	}
	return nil, ErrNotFound
}

// Shift promotes the head of the queue into the in-flight slot. If
// in-flight already equals expectedNextID, this is a no-op. Otherwise
// the current in-flight item (if any) is removed, and the queue head
// is promoted — but only if it equals expectedNextID; a mismatch is a
// hard error (ErrShiftMismatch), matching spec.md §4.C's "mismatch
// with expectation is a hard error signalled through the failure
// channel."
func (q *QueuedStreams) Shift(expectedNextID streamid.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == expectedNextID {
		return nil
	}

	if q.inFlight != streamid.Invalid {
		q.removeLocked(q.inFlight, AboutToDie)
	}

	if len(q.queue) == 0 {
		corelog.For("queue").Error().
			Str("expected", expectedNextID.String()).
			Msg("BUG shift: expected an id but the queue is empty")
		metrics.ObserveDesync("shift")
		return fmt.Errorf("%w: expected %s, queue is empty", ErrShiftMismatch, expectedNextID)
	}

	head := q.queue[0]
	if head != expectedNextID {
		corelog.For("queue").Error().
			Str("expected", expectedNextID.String()).
			Str("head", head.String()).
			Msg("BUG shift: queue head does not match expected next id")
		metrics.ObserveDesync("shift")
		return fmt.Errorf("%w: expected %s, got %s", ErrShiftMismatch, expectedNextID, head)
	}

	q.queue = q.queue[1:]
	q.inFlight = head
	q.byID[head].State = Current
	return nil
}

// ShiftIfNotFlying promotes the queue head into the in-flight slot
// only if the in-flight slot is currently empty. No-op otherwise (even
// if the queue is non-empty), and no-op if the queue is empty.
func (q *QueuedStreams) ShiftIfNotFlying() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight != streamid.Invalid || len(q.queue) == 0 {
		return
	}
	head := q.queue[0]
	q.queue = q.queue[1:]
	q.inFlight = head
	q.byID[head].State = Current
}

// Clear removes every stream the container holds, in-flight included.
func (q *QueuedStreams) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearAllLocked()
}

func (q *QueuedStreams) clearAllLocked() {
	if q.inFlight != streamid.Invalid {
		q.removeLocked(q.inFlight, AboutToDie)
	}
	for len(q.queue) > 0 {
		q.removeLocked(q.queue[0], AboutToDie)
	}
}

// ClearIf removes every stream for which pred returns true.
func (q *QueuedStreams) ClearIf(pred func(*Stream) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight != streamid.Invalid {
		if rec, ok := q.byID[q.inFlight]; ok && pred(rec) {
			q.removeLocked(q.inFlight, AboutToDie)
		}
	}

	var toRemove []streamid.ID
	for _, id := range q.queue {
		if rec, ok := q.byID[id]; ok && pred(rec) {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		q.removeLocked(id, AboutToDie)
	}
}

// CheckInvariants asserts the invariants spec.md §3 documents and
// returns an error describing the first violation found, or nil.
func (q *QueuedStreams) CheckInvariants() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.checkInvariantsLocked()
}

func (q *QueuedStreams) checkInvariantsLocked() error {
	if q.lenLocked() != len(q.byID) {
		return fmt.Errorf("population mismatch: queue+inflight=%d, map=%d", q.lenLocked(), len(q.byID))
	}

	seen := make(map[streamid.ID]bool, len(q.queue))
	for _, id := range q.queue {
		if id == q.inFlight {
			return fmt.Errorf("id %s present in both queue and in-flight", id)
		}
		if seen[id] {
			return fmt.Errorf("id %s duplicated in queue", id)
		}
		seen[id] = true
		if _, ok := q.byID[id]; !ok {
			return fmt.Errorf("orphan queue id %s has no map entry", id)
		}
		if id == streamid.Invalid {
			return errors.New("invalid id present in queue")
		}
	}
	if q.inFlight != streamid.Invalid {
		if _, ok := q.byID[q.inFlight]; !ok {
			return fmt.Errorf("orphan in-flight id %s has no map entry", q.inFlight)
		}
	}
	return nil
}

// Log dumps the container's current state for diagnostics and asserts
// its invariants, logging a BUG-level entry if any are violated.
func (q *QueuedStreams) Log(prefix string) {
	q.mu.Lock()
	inFlight := q.inFlight
	ids := make([]streamid.ID, len(q.queue))
	copy(ids, q.queue)
	err := q.checkInvariantsLocked()
	q.mu.Unlock()

	ev := corelog.For("queue").Info()
	if prefix != "" {
		ev = ev.Str("prefix", prefix)
	}
	ev.Str("in_flight", inFlight.String()).Int("queue_len", len(ids)).Msg("queue state")

	if err != nil {
		corelog.For("queue").Error().Err(err).Msg("BUG queue invariant violated")
	}
}
