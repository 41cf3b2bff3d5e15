package wsbus

import (
	"encoding/json"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/pkg/streamid"
)

// Dispatcher receives the inbound vocabulary spec.md §6 defines —
// commands from the UI connection and notifications from the player
// connection — already decoded into Go values. pkg/control.Control
// implements this interface.
type Dispatcher interface {
	PlaybackStart(sender string)
	PlaybackStop(sender string)
	PlaybackPause(sender string)
	PlaybackPrevious()
	PlaybackNext()
	PlaybackFastWindSetSpeed(factor float64)
	PlaybackSeekStreamPos(value int64, units string)
	PlaybackModeRepeatToggle()
	PlaybackModeShuffleToggle()

	NowPlaying(streamID streamid.ID, queueFull bool, dropped []streamid.ID, url string)
	StreamStopped(streamID streamid.ID, urlfifoEmpty bool, dropped []streamid.ID, errorID string)
	StreamPaused(streamID streamid.ID)
	StreamUnpaused(streamID streamid.ID)
	StreamPosition(streamID streamid.ID, positionMs, durationMs int64)
	StreamDroppedEarly(streamID streamid.ID, errorID string)
	SpeedChanged(streamID streamid.ID, speed float64)
	PlaybackModeChanged(repeat, shuffle bool)
}

// uiEventPayload/playerEventPayload mirror spec.md §6's field tables.
type uiEventPayload struct {
	Sender string  `json:"sender,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	Value  int64   `json:"value,omitempty"`
	Units  string  `json:"units,omitempty"`
}

type playerEventPayload struct {
	StreamID     streamid.ID   `json:"stream_id"`
	QueueFull    bool          `json:"queue_full"`
	Dropped      []streamid.ID `json:"dropped"`
	ErrorID      string        `json:"error_id"`
	URLFIFOEmpty bool          `json:"urlfifo_empty"`
	PositionMs   int64         `json:"position_ms"`
	DurationMs   int64         `json:"duration_ms"`
	Speed        float64       `json:"speed"`
	Repeat       bool          `json:"repeat"`
	Shuffle      bool          `json:"shuffle"`
	URL          string        `json:"url"`
}

// Dispatch decodes one inbound Message and routes it to d. Unknown
// events are logged and otherwise ignored — the bus vocabulary is
// closed, but a carrier must not crash on an unrecognized frame from a
// misbehaving peer.
func Dispatch(msg Message, d Dispatcher) {
	switch msg.Event {
	case EventPlaybackStart:
		var p uiEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.PlaybackStart(p.Sender)
	case EventPlaybackStop:
		var p uiEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.PlaybackStop(p.Sender)
	case EventPlaybackPause:
		var p uiEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.PlaybackPause(p.Sender)
	case EventPlaybackPrevious:
		d.PlaybackPrevious()
	case EventPlaybackNext:
		d.PlaybackNext()
	case EventPlaybackFastWindSetSpeed:
		var p uiEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.PlaybackFastWindSetSpeed(p.Factor)
	case EventPlaybackSeekStreamPos:
		var p uiEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.PlaybackSeekStreamPos(p.Value, p.Units)
	case EventPlaybackModeRepeatToggle:
		d.PlaybackModeRepeatToggle()
	case EventPlaybackModeShuffleToggle:
		d.PlaybackModeShuffleToggle()

	case EventNowPlaying:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.NowPlaying(p.StreamID, p.QueueFull, p.Dropped, p.URL)
	case EventStreamStopped:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.StreamStopped(p.StreamID, p.URLFIFOEmpty, p.Dropped, p.ErrorID)
	case EventStreamPaused:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.StreamPaused(p.StreamID)
	case EventStreamUnpaused:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.StreamUnpaused(p.StreamID)
	case EventStreamPosition:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.StreamPosition(p.StreamID, p.PositionMs, p.DurationMs)
	case EventStreamDroppedEarly:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.StreamDroppedEarly(p.StreamID, p.ErrorID)
	case EventSpeedChanged:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.SpeedChanged(p.StreamID, p.Speed)
	case EventPlaybackModeChanged:
		var p playerEventPayload
		_ = json.Unmarshal(msg.Data, &p)
		d.PlaybackModeChanged(p.Repeat, p.Shuffle)

	default:
		corelog.For("wsbus").Debug().Str("event", msg.Event).Msg("unrecognized inbound event, dropped")
	}
}

// Serve runs conn's read loop, dispatching every non-reply frame to d,
// until the connection closes. Intended to be run on its own
// goroutine per connection.
func Serve(conn *Conn, d Dispatcher) {
	conn.readLoop(func(msg Message) { Dispatch(msg, d) })
}
