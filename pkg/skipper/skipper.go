// Package skipper implements the skip-request coalescer (spec.md §3,
// §4.F): repeated forward/backward presses arriving while a find-next
// search is already in flight are folded into a single pending
// counter instead of queuing one search per press.
package skipper

import (
	"sync"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/internal/metrics"
	"github.com/soundboard/playerctld/pkg/crawler"
)

func directionLabel(dir crawler.Direction) string {
	if dir == crawler.DirectionBackward {
		return "backward"
	}
	return "forward"
}

// MaxPending bounds the coalesced press counter in either direction
// (spec.md §3: "typically 5").
const MaxPending = 5

// Outcome is what a Forward/Backward press immediately reports back to
// the caller (e.g. so it can acknowledge the UI command).
type Outcome int

const (
	// Rejected means the press was refused outright (player stopped,
	// or the counter is already saturated in that direction).
	Rejected Outcome = iota
	// Coalesced means an existing skip session absorbed this press;
	// no new find-next was launched.
	Coalesced
	// BackToNormal means this press exactly canceled out the pending
	// count back to zero; no done callback fires for it.
	BackToNormal
	// Started means this press began a brand-new skip session and a
	// find-next search was launched.
	Started
)

// RunFindNext launches a find-next search in dir and arranges for
// onComplete to be invoked with the resulting op once it finishes
// (successfully, with failure, or canceled). It is supplied by the
// orchestrator, which knows how to build the request (starting
// cursor, recursion mode, bookmarks) for a given direction.
type RunFindNext func(dir crawler.Direction, onComplete func(*crawler.FindNextOp)) *crawler.FindNextOp

// Done is invoked at most once per skip session, with a strong
// reference to the winning find-next op (spec.md §5's ordering
// guarantee). canceled is true if the session was aborted via Abort
// rather than completing naturally.
type Done func(op *crawler.FindNextOp, canceled bool)

// Skipper coalesces direction-pressed events into a bounded pending
// counter and a single in-flight find-next search. It has its own
// mutex, independent of PlayerControl's and PlayerData's, and — per
// spec.md §5 — never holds it across a Done invocation.
type Skipper struct {
	mu sync.Mutex

	findNextOp *crawler.FindNextOp
	pending    int

	runNewFindNext RunFindNext
	itemFilter     func(*crawler.FindNextOp) bool

	done     Done
	doneOnce sync.Once
}

// New returns an idle Skipper. runFindNext launches a new find-next
// search; itemFilter (optional) is consulted before firing done to
// suppress sessions whose winning op should be treated as discarded.
func New(runFindNext RunFindNext, itemFilter func(*crawler.FindNextOp) bool) *Skipper {
	return &Skipper{runNewFindNext: runFindNext, itemFilter: itemFilter}
}

// ForwardRequest handles a skip-forward press. stopped reports whether
// the player is currently STOPPED, in which case the press is
// rejected outright (spec.md §4.F step 1). done is the session's
// completion callback; it is ignored if a session is already running
// (the original session's done wins).
func (s *Skipper) ForwardRequest(stopped bool, done Done) Outcome {
	return s.request(crawler.DirectionForward, stopped, done)
}

// BackwardRequest handles a skip-backward press. See ForwardRequest.
func (s *Skipper) BackwardRequest(stopped bool, done Done) Outcome {
	return s.request(crawler.DirectionBackward, stopped, done)
}

func (s *Skipper) request(dir crawler.Direction, stopped bool, done Done) Outcome {
	if stopped {
		return Rejected
	}

	s.mu.Lock()

	if s.pending != 0 {
		delta := 1
		if dir == crawler.DirectionBackward {
			delta = -1
		}
		next := s.pending + delta
		if next == 0 {
			s.pending = 0
			s.mu.Unlock()
			return BackToNormal
		}
		if abs(next) > MaxPending {
			s.mu.Unlock()
			corelog.For("skipper").Debug().Int("pending", next).Msg("skip press rejected: pending count saturated")
			return Rejected
		}
		s.pending = next
		s.mu.Unlock()
		metrics.ObserveSkipOutcome(directionLabel(dir), true)
		return Coalesced
	}

	if s.findNextOp != nil {
		delta := 1
		if dir == crawler.DirectionBackward {
			delta = -1
		}
		if abs(delta) > MaxPending {
			s.mu.Unlock()
			return Rejected
		}
		s.pending = delta
		s.mu.Unlock()
		metrics.ObserveSkipOutcome(directionLabel(dir), true)
		return Coalesced
	}

	// First request of a fresh session.
	s.done = done
	s.doneOnce = sync.Once{}
	s.mu.Unlock()

	op := s.runNewFindNext(dir, s.onFindNextComplete)

	s.mu.Lock()
	s.findNextOp = op
	s.mu.Unlock()
	metrics.ObserveSkipOutcome(directionLabel(dir), false)
	return Started
}

// onFindNextComplete is the completion handler wired to every
// find-next op this Skipper launches. It decides, per spec.md §4.F,
// whether the session is over (fire done) or whether another
// follow-up search must be launched in the direction of the residual
// pending count.
func (s *Skipper) onFindNextComplete(op *crawler.FindNextOp) {
	if op.IsOpCanceled() {
		s.fireDone(op, true)
		return
	}

	s.mu.Lock()

	positional := op.Result().PositionalState
	terminal := positional == crawler.PositionReachedStartOfList || positional == crawler.PositionReachedEndOfList
	if terminal {
		s.pending = 0
	}

	if terminal || (s.pending == 0 && positional == crawler.PositionSomewhereInList) {
		s.findNextOp = nil
		s.mu.Unlock()
		s.fireDone(op, false)
		return
	}

	dir := crawler.DirectionForward
	if s.pending < 0 {
		dir = crawler.DirectionBackward
	}
	if s.pending > 0 {
		s.pending--
	} else if s.pending < 0 {
		s.pending++
	}
	s.mu.Unlock()

	next := s.runNewFindNext(dir, s.onFindNextComplete)
	s.mu.Lock()
	s.findNextOp = next
	s.mu.Unlock()
}

// fireDone invokes the session's done callback at most once, outside
// of s.mu (spec.md §5: "never held across a PlayerControl callback
// invocation").
func (s *Skipper) fireDone(op *crawler.FindNextOp, canceled bool) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return
	}
	if s.itemFilter != nil && !s.itemFilter(op) {
		return
	}
	s.doneOnce.Do(func() {
		done(op, canceled)
	})
}

// Abort cancels whatever find-next op is currently in flight and
// clears the pending counter, ending the session without a winning
// op. The session's done callback is invoked with canceled=true if one
// was registered and has not already fired.
func (s *Skipper) Abort() {
	s.mu.Lock()
	op := s.findNextOp
	s.findNextOp = nil
	s.pending = 0
	s.mu.Unlock()

	if op != nil {
		op.Cancel()
		return
	}
	// No op was in flight (e.g. aborted between completion and the
	// next follow-up being launched); still honor the at-most-once done
	// contract with a nil op.
	s.fireDone(nil, true)
}

// IsActive reports whether a skip session is currently in flight.
func (s *Skipper) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findNextOp != nil
}

// Pending returns the current coalesced press counter, for tests and
// diagnostics.
func (s *Skipper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
