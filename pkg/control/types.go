// Package control implements the orchestrator (spec.md §4.I): the
// component that consumes user intents and player notifications,
// drives the crawler, queues streams into the player, and enforces
// the user's playback intention against what the player actually
// reports.
package control

import (
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/playerdata"
)

// InsertMode controls how a newly queued stream affects whatever the
// player already holds (spec.md §4.I "queue_item_from_op").
type InsertMode int

const (
	// InsertAppend keeps everything already queued and adds to the end.
	InsertAppend InsertMode = iota
	// InsertReplaceQueue clears the queue but leaves the current item playing.
	InsertReplaceQueue
	// InsertReplaceAll clears everything, including the currently playing item.
	InsertReplaceAll
)

// PlayNewMode says whether queue_stream_or_forget should make the
// newly queued stream play immediately or merely sit queued.
type PlayNewMode int

const (
	PlayNewModePlay PlayNewMode = iota
	PlayNewModePause
)

// playNewModeForIntent derives the PlayNewMode a freshly queued stream
// should adopt from the user's current intention (spec.md §4.I:
// "play_mode derives from the current intent").
func playNewModeForIntent(intent playerdata.Intention) PlayNewMode {
	switch intent {
	case playerdata.Pausing, playerdata.SkippingPaused:
		return PlayNewModePause
	default:
		return PlayNewModePlay
	}
}

// playNewModeForIntentFromData reads data's current intention (nil-safe)
// and derives the PlayNewMode a freshly queued prefetch item should use.
func playNewModeForIntentFromData(data *playerdata.PlayerData) PlayNewMode {
	if data == nil {
		return PlayNewModePlay
	}
	return playNewModeForIntent(data.Intention())
}

// StopClassification is the outcome of comparing the queue head
// against a STREAM_STOPPED notification's id (spec.md §4.I table).
type StopClassification int

const (
	ClassificationOursAsExpected StopClassification = iota
	ClassificationUnexpectedlyNotOurs
	ClassificationOursWrongID
	ClassificationOursQueued
	ClassificationEmptyAsExpected
	ClassificationNotOurs
	ClassificationUnexpectedlyOurs
	ClassificationInvalidID
)

func (c StopClassification) String() string {
	switch c {
	case ClassificationOursAsExpected:
		return "OURS_AS_EXPECTED"
	case ClassificationUnexpectedlyNotOurs:
		return "UNEXPECTEDLY_NOT_OURS"
	case ClassificationOursWrongID:
		return "OURS_WRONG_ID"
	case ClassificationOursQueued:
		return "OURS_QUEUED"
	case ClassificationEmptyAsExpected:
		return "EMPTY_AS_EXPECTED"
	case ClassificationNotOurs:
		return "NOT_OURS"
	case ClassificationUnexpectedlyOurs:
		return "UNEXPECTEDLY_OURS"
	default:
		return "INVALID_ID"
	}
}

// StopOutcome is what a stop notification handler reports back to the
// caller (spec.md §4.I: "return STOPPED"/"return QUEUED").
type StopOutcome int

const (
	OutcomeStopped StopOutcome = iota
	OutcomeQueued
)

// FindNextDone is the completion signature a command installs on a
// Skipper or direct find-next run: canceled is true when the session
// was aborted; op is then the canceled in-flight op, or nil if no op
// was in flight.
type FindNextDone func(op *crawler.FindNextOp, canceled bool)
