package control

import (
	"context"

	"github.com/soundboard/playerctld/pkg/playerdata"
)

// IntentAction is the single command intent enforcement may emit, or
// no command at all.
type IntentAction int

const (
	ActionNone IntentAction = iota
	ActionStop
	ActionPause
	ActionPlay
)

// enforceIntentAction is the pure 6x4 decision table from spec.md
// §4.I ("Intent enforcement"), implemented as a function over tagged
// enums rather than nested conditionals per spec.md §9's design note.
func enforceIntentAction(intent playerdata.Intention, state playerdata.PlayerState) IntentAction {
	switch intent {
	case playerdata.Stopping:
		switch state {
		case playerdata.Buffering, playerdata.Playing, playerdata.Paused:
			return ActionStop
		}
	case playerdata.Pausing, playerdata.SkippingPaused:
		switch state {
		case playerdata.Stopped, playerdata.Buffering, playerdata.Playing:
			return ActionPause
		}
	case playerdata.Listening, playerdata.SkippingLive:
		switch state {
		case playerdata.Stopped, playerdata.Paused:
			return ActionPlay
		}
	}
	return ActionNone
}

// enforceIntent compares the current (intention, player_state) pair
// against enforceIntentAction's table and issues the corresponding
// transport command, if any. Only runs when with_enforced_intentions
// was set on the plug (spec.md §4.I).
func (c *Control) enforceIntent() {
	c.mu.Lock()
	if !c.withEnforcedIntentions || c.data == nil {
		c.mu.Unlock()
		return
	}
	data := c.data
	proxy := c.transportLocked()
	c.mu.Unlock()
	if proxy == nil {
		return
	}

	action := enforceIntentAction(data.Intention(), data.PlayerState())
	switch action {
	case ActionStop:
		proxy.Stop(context.Background(), "enforce_intent")
	case ActionPause:
		proxy.Pause(context.Background(), "enforce_intent")
	case ActionPlay:
		proxy.Start(context.Background(), "enforce_intent")
	}
}
