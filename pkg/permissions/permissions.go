// Package permissions holds the per-audio-source capability vector
// PlayerControl consults before any decision that might need to be
// rejected (spec.md §3, §4.H).
package permissions

// Set is an audio source's capability vector. It is replaced wholesale
// when the active audio source changes — permissions are never
// partially merged across sources.
type Set struct {
	CanPlay               bool
	CanSkipForward        bool
	CanSkipBackward       bool
	CanPrefetchForGapless bool
	CanSkipOnError        bool
	RetryIfStreamBroken   bool
	MaxPrefetch           int
}

// Default returns the maximally permissive vector, used for audio
// sources that don't customize their capabilities.
func Default() Set {
	return Set{
		CanPlay:               true,
		CanSkipForward:        true,
		CanSkipBackward:       true,
		CanPrefetchForGapless: true,
		CanSkipOnError:        true,
		RetryIfStreamBroken:   true,
		MaxPrefetch:           5,
	}
}

// None returns the maximally restrictive vector, useful for sources
// that only support bare playback.
func None() Set {
	return Set{CanPlay: true, MaxPrefetch: 0}
}
