// Package wsbus is the reference carrier for the core's external
// message vocabulary (spec.md §6): a gorilla/websocket connection
// exchanging small JSON frames of the shape {"event": "...", ...
// fields}. The vocabulary itself, not the transport, is what spec.md
// treats as load-bearing; wsbus is one concrete way to ship it.
package wsbus

import "encoding/json"

// Event names, verbatim from spec.md §6's inbound/outbound tables.
const (
	EventPlaybackStart             = "PLAYBACK_START"
	EventPlaybackStop              = "PLAYBACK_STOP"
	EventPlaybackPause             = "PLAYBACK_PAUSE"
	EventPlaybackPrevious          = "PLAYBACK_PREVIOUS"
	EventPlaybackNext              = "PLAYBACK_NEXT"
	EventPlaybackFastWindSetSpeed  = "PLAYBACK_FAST_WIND_SET_SPEED"
	EventPlaybackSeekStreamPos     = "PLAYBACK_SEEK_STREAM_POS"
	EventPlaybackModeRepeatToggle  = "PLAYBACK_MODE_REPEAT_TOGGLE"
	EventPlaybackModeShuffleToggle = "PLAYBACK_MODE_SHUFFLE_TOGGLE"

	EventNowPlaying          = "NOW_PLAYING"
	EventStreamStopped       = "STREAM_STOPPED"
	EventStreamPaused        = "STREAM_PAUSED"
	EventStreamUnpaused      = "STREAM_UNPAUSED"
	EventStreamPosition      = "STREAM_POSITION"
	EventStreamDroppedEarly  = "STREAM_DROPPED_EARLY"
	EventSpeedChanged        = "SPEED_CHANGED"
	EventPlaybackModeChanged = "PLAYBACK_MODE_CHANGED"

	// Outbound-to-player command/response frames. These are not part of
	// spec.md's named event table (that table covers the abstract bus
	// vocabulary); they are wsbus's own wire encoding for the
	// push/clear/start/... calls in pkg/transport.Backend.
	EventCmdPush           = "CMD_PUSH"
	EventCmdClear          = "CMD_CLEAR"
	EventCmdStart          = "CMD_START"
	EventCmdStop           = "CMD_STOP"
	EventCmdPause          = "CMD_PAUSE"
	EventCmdSkipNext       = "CMD_SKIP_NEXT"
	EventCmdSkipPrevious   = "CMD_SKIP_PREVIOUS"
	EventCmdSeek           = "CMD_SEEK"
	EventCmdSetSpeed       = "CMD_SET_SPEED"
	EventCmdSetRepeatMode  = "CMD_SET_REPEAT_MODE"
	EventCmdSetShuffleMode = "CMD_SET_SHUFFLE_MODE"
	EventCmdReply          = "CMD_REPLY"
)

// Message is one JSON frame exchanged over the bus: an event name plus
// whatever fields that event carries, and (for request/reply pairs on
// the outbound command channel) a correlation id.
type Message struct {
	Event     string          `json:"event"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func encode(event, requestID string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, RequestID: requestID, Data: raw}, nil
}
