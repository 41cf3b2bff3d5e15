package control

import (
	"context"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/streamid"
	"github.com/soundboard/playerctld/pkg/transport"
)

// rewindThresholdMs is how far into a stream PLAYBACK_PREVIOUS must be
// before it rewinds instead of skipping backward (spec.md §6).
const rewindThresholdMs = 5000

// Control implements wsbus.Dispatcher, translating the bus vocabulary
// (spec.md §6) directly into the command/notification entry points
// above. It is the only file in this package that knows about the bus
// event names' semantics; everything else only sees stream ids and
// Go values.

// PlaybackStart implements PLAYBACK_START's toggle semantics: play,
// or pause if the player is already buffering/playing.
func (c *Control) PlaybackStart(sender string) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil {
		state := data.PlayerState()
		if state == playerdata.Playing || state == playerdata.Buffering {
			c.Pause(sender)
			return
		}
	}
	c.Play(nil, sender)
}

func (c *Control) PlaybackStop(sender string)  { c.Stop(sender) }
func (c *Control) PlaybackPause(sender string) { c.Pause(sender) }

// PlaybackPrevious rewinds to the start of the current stream if
// playback position is beyond rewindThresholdMs, else skips backward
// (spec.md §6).
func (c *Control) PlaybackPrevious() {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil && data.NowPlaying().PositionMs > rewindThresholdMs {
		c.SeekStream(0, transport.Milliseconds)
		return
	}
	c.SkipBackward()
}

func (c *Control) PlaybackNext() { c.SkipForward() }

func (c *Control) PlaybackFastWindSetSpeed(factor float64) { c.FastWindSetSpeed(factor) }

func (c *Control) PlaybackSeekStreamPos(value int64, units string) {
	c.SeekStream(value, transport.Units(units))
}

func (c *Control) PlaybackModeRepeatToggle() {
	c.mu.Lock()
	proxy := c.transportLocked()
	c.mu.Unlock()
	if proxy != nil {
		proxy.SetRepeatMode(context.Background(), "toggle")
	}
}

func (c *Control) PlaybackModeShuffleToggle() {
	c.mu.Lock()
	proxy := c.transportLocked()
	c.mu.Unlock()
	if proxy != nil {
		proxy.SetShuffleMode(context.Background(), "toggle")
	}
}

// NowPlaying implements the NOW_PLAYING notification (spec.md §6):
// drop the reported ids, switch the now-playing snapshot, and run
// play_notification.
func (c *Control) NowPlaying(streamID streamid.ID, queueFull bool, dropped []streamid.ID, url string) {
	c.mu.Lock()
	data := c.data
	alloc := c.alloc
	c.mu.Unlock()
	if data == nil {
		return
	}

	data.PlayerDroppedFromQueue(dropped, alloc.IsOurs)
	if err := data.StreamHasChanged(streamID); err != nil {
		corelog.For("control").Error().Err(err).Msg("BUG now_playing: stream-has-changed shift failed")
	}
	data.SetPlayerState(playerdata.Playing)
	data.SetNowPlaying(playerdata.NowPlaying{StreamID: streamID, URL: url})

	c.PlayNotification(streamID, alloc.IsOurs(streamID), "now_playing")
}

// StreamStopped implements the STREAM_STOPPED notification (spec.md
// §6, §4.I).
func (c *Control) StreamStopped(streamID streamid.ID, urlfifoEmpty bool, dropped []streamid.ID, errorID string) {
	c.mu.Lock()
	data := c.data
	alloc := c.alloc
	c.mu.Unlock()
	if data != nil {
		data.PlayerDroppedFromQueue(dropped, alloc.IsOurs)
		data.SetPlayerState(playerdata.Stopped)
	}

	if errorID == "" {
		c.StopNotificationOK(streamID)
		return
	}
	c.StopNotificationWithError(streamID, errorID, urlfifoEmpty)
}

// StreamPaused implements the STREAM_PAUSED notification.
func (c *Control) StreamPaused(streamID streamid.ID) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil {
		data.SetPlayerState(playerdata.Paused)
	}
	c.PauseNotification(streamID)
}

// StreamUnpaused implements the STREAM_UNPAUSED notification: a play
// notification with no now-playing switch.
func (c *Control) StreamUnpaused(streamID streamid.ID) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil {
		data.SetPlayerState(playerdata.Playing)
	}
	c.PlayNotification(streamID, false, "unpaused")
}

// StreamPosition implements the STREAM_POSITION notification.
func (c *Control) StreamPosition(streamID streamid.ID, positionMs, durationMs int64) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil {
		data.UpdatePosition(positionMs, durationMs)
	}
}

// StreamDroppedEarly implements the STREAM_DROPPED_EARLY notification:
// a player-rejected-unplayed-stream removal.
func (c *Control) StreamDroppedEarly(streamID streamid.ID, errorID string) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data == nil {
		return
	}
	if err := data.PlayerRejectedUnplayedStream(streamID); err != nil {
		corelog.For("control").Debug().Err(err).Str("error_id", errorID).
			Msg("stream_dropped_early: id not present in queue")
	}
}

// SpeedChanged implements the SPEED_CHANGED notification.
func (c *Control) SpeedChanged(streamID streamid.ID, speed float64) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil {
		data.SetSpeed(speed)
	}
}

// PlaybackModeChanged implements the PLAYBACK_MODE_CHANGED
// notification. Repeat/shuffle mode is reported-only state the core
// doesn't otherwise act on, so it is just logged here.
func (c *Control) PlaybackModeChanged(repeat, shuffle bool) {
	corelog.For("control").Debug().Bool("repeat", repeat).Bool("shuffle", shuffle).
		Msg("playback mode changed")
}
