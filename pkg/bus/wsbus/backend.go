package wsbus

import (
	"context"
	"encoding/json"

	"github.com/soundboard/playerctld/pkg/metadata"
	"github.com/soundboard/playerctld/pkg/streamid"
	"github.com/soundboard/playerctld/pkg/transport"
)

// PlayerBackend implements transport.Backend by exchanging the
// outbound CMD_* frames with a single player connection.
type PlayerBackend struct {
	conn *Conn
}

// NewPlayerBackend wraps conn as a transport.Backend.
func NewPlayerBackend(conn *Conn) *PlayerBackend {
	return &PlayerBackend{conn: conn}
}

type pushPayload struct {
	StreamID   streamid.ID             `json:"stream_id"`
	URI        string                  `json:"uri"`
	StreamKey  []byte                  `json:"stream_key"`
	Position   int64                   `json:"position"`
	PositionU  string                  `json:"position_units"`
	Duration   int64                   `json:"duration"`
	DurationU  string                  `json:"duration_units"`
	KeepFirstN int                     `json:"keep_first_n"`
	Metadata   map[metadata.Key]string `json:"metadata,omitempty"`
}

type pushReply struct {
	FIFOOverflow bool `json:"fifo_overflow"`
	IsPlaying    bool `json:"is_playing"`
}

func (b *PlayerBackend) Push(ctx context.Context, req transport.PushRequest) (transport.PushResult, error) {
	payload := pushPayload{
		StreamID:   req.StreamID,
		URI:        req.URI,
		StreamKey:  req.StreamKey,
		Position:   req.Position,
		PositionU:  string(req.PositionU),
		Duration:   req.Duration,
		DurationU:  string(req.DurationU),
		KeepFirstN: req.KeepFirstN,
	}
	if req.Metadata != nil {
		payload.Metadata = req.Metadata.All()
	}
	reply, err := b.conn.Request(EventCmdPush, payload)
	if err != nil {
		return transport.PushResult{}, err
	}
	var out pushReply
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return transport.PushResult{}, err
	}
	return transport.PushResult{FIFOOverflow: out.FIFOOverflow, IsPlaying: out.IsPlaying}, nil
}

type clearReply struct {
	PlayingID  streamid.ID   `json:"playing_id"`
	QueuedIDs  []streamid.ID `json:"queued_ids"`
	RemovedIDs []streamid.ID `json:"removed_ids"`
}

func (b *PlayerBackend) Clear(ctx context.Context, keepFirstN int) (transport.ClearResult, error) {
	reply, err := b.conn.Request(EventCmdClear, map[string]int{"keep_first_n": keepFirstN})
	if err != nil {
		return transport.ClearResult{}, err
	}
	var out clearReply
	if err := json.Unmarshal(reply.Data, &out); err != nil {
		return transport.ClearResult{}, err
	}
	return transport.ClearResult{PlayingID: out.PlayingID, QueuedIDs: out.QueuedIDs, RemovedIDs: out.RemovedIDs}, nil
}

func (b *PlayerBackend) Start(ctx context.Context, reason string) error {
	return b.conn.Send(EventCmdStart, map[string]string{"reason": reason})
}

func (b *PlayerBackend) Stop(ctx context.Context, reason string) error {
	return b.conn.Send(EventCmdStop, map[string]string{"reason": reason})
}

func (b *PlayerBackend) Pause(ctx context.Context, reason string) error {
	return b.conn.Send(EventCmdPause, map[string]string{"reason": reason})
}

func (b *PlayerBackend) SkipToNext(ctx context.Context) error {
	return b.conn.Send(EventCmdSkipNext, nil)
}

func (b *PlayerBackend) SkipToPrevious(ctx context.Context) error {
	return b.conn.Send(EventCmdSkipPrevious, nil)
}

func (b *PlayerBackend) Seek(ctx context.Context, value int64, units transport.Units) error {
	return b.conn.Send(EventCmdSeek, map[string]any{"value": value, "units": string(units)})
}

func (b *PlayerBackend) SetSpeed(ctx context.Context, factor float64) error {
	return b.conn.Send(EventCmdSetSpeed, map[string]float64{"factor": factor})
}

func (b *PlayerBackend) SetRepeatMode(ctx context.Context, mode string) error {
	return b.conn.Send(EventCmdSetRepeatMode, map[string]string{"mode": mode})
}

func (b *PlayerBackend) SetShuffleMode(ctx context.Context, mode string) error {
	return b.conn.Send(EventCmdSetShuffleMode, map[string]string{"mode": mode})
}

var _ transport.Backend = (*PlayerBackend)(nil)
