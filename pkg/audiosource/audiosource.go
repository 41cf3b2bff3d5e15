// Package audiosource implements the per-source lifecycle state
// machine (spec.md §4.I "Audio-source state machine"): DESELECTED ->
// REQUESTED -> SELECTED, driven by request()/selected_notification()/
// deselected_notification(), plus the forced select_now() transition.
package audiosource

import (
	"sync"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/pkg/permissions"
)

// State is a position in the audio-source lifecycle.
type State int

const (
	Deselected State = iota
	Requested
	Selected
)

func (s State) String() string {
	switch s {
	case Deselected:
		return "DESELECTED"
	case Requested:
		return "REQUESTED"
	case Selected:
		return "SELECTED"
	default:
		return "UNKNOWN"
	}
}

// Source is one named audio source with its own permission vector and
// lifecycle state. PlayerControl owns one or more of these and swaps
// which one is active.
type Source struct {
	mu sync.Mutex

	Name        string
	state       State
	permissions permissions.Set

	// ResumeData is an opaque blob the core stashes across a
	// deselect/reselect cycle (e.g. the stream-id and position to
	// resume from); PlayerControl reads and writes it directly.
	ResumeData any
}

// New returns a DESELECTED Source named name with perms.
func New(name string, perms permissions.Set) *Source {
	return &Source{Name: name, permissions: perms}
}

// State returns the source's current lifecycle state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Permissions returns the source's current capability vector.
func (s *Source) Permissions() permissions.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permissions
}

// SetPermissions replaces the source's capability vector wholesale
// (spec.md §4.H: "switching audio source replaces the vector").
func (s *Source) SetPermissions(perms permissions.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions = perms
}

// Request transitions DESELECTED -> REQUESTED. It is a no-op if the
// source is already REQUESTED or SELECTED.
func (s *Source) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Deselected {
		s.state = Requested
	}
}

// SelectedNotification transitions REQUESTED -> SELECTED, confirming
// the source is now the one actually feeding the player.
func (s *Source) SelectedNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Requested {
		s.state = Selected
	}
}

// DeselectedNotification transitions SELECTED (or REQUESTED) back to
// DESELECTED.
func (s *Source) DeselectedNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Deselected
}

// SelectNow forces a transition straight to SELECTED, used only when
// the audio path was set up externally rather than through the normal
// request/selected-notification handshake. Calling it while REQUESTED
// is a caller bug but is tolerated — it simply falls through to
// SELECTED (spec.md §4.I).
func (s *Source) SelectNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Requested {
		corelog.For("audiosource").Debug().Str("source", s.Name).
			Msg("BUG select_now called from REQUESTED; falling through to SELECTED")
	}
	s.state = Selected
}

// IsSelected reports whether this source is the one currently feeding
// the player.
func (s *Source) IsSelected() bool {
	return s.State() == Selected
}
