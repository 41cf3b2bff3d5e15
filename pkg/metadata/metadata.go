// Package metadata implements the fixed-schema per-stream metadata
// record (spec.md §3, §4.B): a small, known vocabulary of string
// fields merged from crawler results and player notifications, plus
// the bitrate reformatter that normalizes bitrate-like fields to
// kilobits per second.
package metadata

import (
	"math"
	"strconv"

	"github.com/soundboard/playerctld/internal/corelog"
)

// Key identifies one field of the fixed metadata schema. Unknown keys
// passed to Set are ignored.
type Key string

// Regular fields, present for any stream with known tags.
const (
	Artist         Key = "artist"
	Album          Key = "album"
	Title          Key = "title"
	Codec          Key = "codec"
	BitrateNominal Key = "bitrate_nominal"
	BitrateMinimum Key = "bitrate_minimum"
	BitrateMaximum Key = "bitrate_maximum"
	BitrateCurrent Key = "bitrate_current"
)

// Internal fields, reserved for the core's own bookkeeping rather than
// tag data: a display title override, the resolved URL, and three
// opaque lines a list broker may ask to be rendered verbatim.
const (
	InternalTitle       Key = "TITLE"
	InternalURL         Key = "URL"
	InternalOpaqueLine1 Key = "OPAQUE_LINE_1"
	InternalOpaqueLine2 Key = "OPAQUE_LINE_2"
	InternalOpaqueLine3 Key = "OPAQUE_LINE_3"
)

var bitrateKeys = map[Key]bool{
	BitrateNominal: true,
	BitrateMinimum: true,
	BitrateMaximum: true,
	BitrateCurrent: true,
}

var internalKeys = map[Key]bool{
	InternalTitle:       true,
	InternalURL:         true,
	InternalOpaqueLine1: true,
	InternalOpaqueLine2: true,
	InternalOpaqueLine3: true,
}

var knownKeys = map[Key]bool{
	Artist: true, Album: true, Title: true, Codec: true,
	BitrateNominal: true, BitrateMinimum: true, BitrateMaximum: true, BitrateCurrent: true,
	InternalTitle: true, InternalURL: true,
	InternalOpaqueLine1: true, InternalOpaqueLine2: true, InternalOpaqueLine3: true,
}

// Set is the per-stream metadata record. The zero value is ready to
// use. Set is not safe for concurrent use from multiple goroutines
// without external synchronization; Set does no locking of its own,
// and QueuedStreams does not lock the Sets its streams hold.
type Set struct {
	fields map[Key]string
}

// New returns an empty metadata Set.
func New() *Set {
	return &Set{fields: make(map[Key]string)}
}

// Add sets key to value. Unknown keys are ignored. Bitrate-like keys
// are passed through Reformat first; if the value cannot be
// reformatted it is stored unchanged and the rejection is logged.
func (s *Set) Add(key Key, value string) {
	if !knownKeys[key] {
		return
	}
	if s.fields == nil {
		s.fields = make(map[Key]string)
	}

	if bitrateKeys[key] {
		if reformatted, ok := Reformat(value); ok {
			s.fields[key] = reformatted
			return
		}
		corelog.For("metadata").Debug().
			Str("key", string(key)).Str("value", value).
			Msg("bitrate value could not be reformatted, storing unchanged")
	}
	s.fields[key] = value
}

// Get returns the value stored for key, if any.
func (s *Set) Get(key Key) (string, bool) {
	if s.fields == nil {
		return "", false
	}
	v, ok := s.fields[key]
	return v, ok
}

// All returns a copy of every field currently stored, keyed by their
// wire names. Used by transport carriers (e.g. pkg/bus/wsbus) to
// serialize a Set without exposing its internal map.
func (s *Set) All() map[Key]string {
	out := make(map[Key]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Merge copies every field of other into s, overwriting any field s
// already has. The local-file enrichment path (localfile.go) uses
// MergeMissing instead, so crawler-supplied fields win.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	if s.fields == nil {
		s.fields = make(map[Key]string)
	}
	for k, v := range other.fields {
		s.fields[k] = v
	}
}

// MergeMissing copies fields from other into s only where s does not
// already have a value for that key. Used to apply a fallback source
// (e.g. local ID3 tags) without clobbering authoritative data.
func (s *Set) MergeMissing(other *Set) {
	if other == nil {
		return
	}
	if s.fields == nil {
		s.fields = make(map[Key]string)
	}
	for k, v := range other.fields {
		if _, exists := s.fields[k]; !exists {
			s.fields[k] = v
		}
	}
}

// Clear removes all regular fields. If includeInternal is true, the
// internal fields (TITLE, URL, OPAQUE_LINE_*) are removed too.
func (s *Set) Clear(includeInternal bool) {
	for k := range s.fields {
		if internalKeys[k] && !includeInternal {
			continue
		}
		delete(s.fields, k)
	}
}

// Equal reports whether s and other hold identical fields.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fields) != len(other.fields) {
		return false
	}
	for k, v := range s.fields {
		if ov, ok := other.fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of s.
func (s *Set) Clone() *Set {
	c := &Set{fields: make(map[Key]string, len(s.fields))}
	for k, v := range s.fields {
		c.fields[k] = v
	}
	return c
}

// Reformat rounds a bitrate-like decimal string to the nearest
// kilobit-per-second value. It rejects (returns the input unchanged,
// false) anything that is not a bare, unsigned decimal integer — no
// leading/trailing whitespace, no sign, nothing but digits — or whose
// value exceeds math.MaxUint32.
func Reformat(raw string) (string, bool) {
	if raw == "" {
		return raw, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return raw, false
		}
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v > math.MaxUint32 {
		return raw, false
	}

	rounded := (v + 500) / 1000
	return strconv.FormatUint(rounded, 10), true
}
