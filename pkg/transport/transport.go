// Package transport implements the player transport proxy (spec.md
// §6, §3.3): a circuit-breaker- and rate-limiter-protected wrapper
// around the small, well-defined message vocabulary the core sends to
// the external player.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/soundboard/playerctld/internal/corelog"
	"github.com/soundboard/playerctld/pkg/metadata"
	"github.com/soundboard/playerctld/pkg/streamid"
)

// Units distinguishes the two position/duration/seek unit systems the
// wire vocabulary allows (spec.md §6).
type Units string

const (
	Milliseconds Units = "ms"
	Seconds      Units = "s"
)

// PushRequest is what push() sends to the player (spec.md §6).
type PushRequest struct {
	StreamID   streamid.ID
	URI        string
	StreamKey  []byte
	Position   int64
	PositionU  Units
	Duration   int64
	DurationU  Units
	KeepFirstN int
	Metadata   *metadata.Set
}

// KeepFirstN values (spec.md §4's "queue_item_from_op" table).
const (
	KeepAll         = -1
	KeepNoneButPlay = 0
	KeepNothing     = -2
)

// PushResult is what the player reports back from a push.
type PushResult struct {
	FIFOOverflow bool
	IsPlaying    bool
}

// ClearResult is what the player reports back from a clear.
type ClearResult struct {
	PlayingID  streamid.ID
	QueuedIDs  []streamid.ID
	RemovedIDs []streamid.ID
}

// Backend is the external player's wire contract. It is implemented by
// the concrete bus carrier (pkg/bus/wsbus is the reference
// implementation); Proxy only depends on this interface.
type Backend interface {
	Push(ctx context.Context, req PushRequest) (PushResult, error)
	Clear(ctx context.Context, keepFirstN int) (ClearResult, error)
	Start(ctx context.Context, reason string) error
	Stop(ctx context.Context, reason string) error
	Pause(ctx context.Context, reason string) error
	SkipToNext(ctx context.Context) error
	SkipToPrevious(ctx context.Context) error
	Seek(ctx context.Context, value int64, units Units) error
	SetSpeed(ctx context.Context, factor float64) error
	SetRepeatMode(ctx context.Context, mode string) error
	SetShuffleMode(ctx context.Context, mode string) error
}

// breakerOpenFor is how long the circuit stays open after three
// consecutive failures (spec.md §3.3).
const breakerOpenFor = 5 * time.Second

const consecutiveFailuresToTrip = 3

// Proxy wraps Backend calls in a gobreaker.CircuitBreaker per command
// kind and rate-limits the outbound calls most likely to be issued in
// a tight loop (push, seek, set_speed). No lock from pkg/control is
// ever held while these calls run (spec.md §5).
type Proxy struct {
	backend Backend

	pushLimiter  *rate.Limiter
	seekLimiter  *rate.Limiter
	speedLimiter *rate.Limiter

	pushBreaker  *gobreaker.CircuitBreaker[PushResult]
	clearBreaker *gobreaker.CircuitBreaker[ClearResult]
	voidBreakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// New wraps backend with per-command circuit breakers and rate
// limiters.
func New(backend Backend) *Proxy {
	p := &Proxy{
		backend:      backend,
		pushLimiter:  rate.NewLimiter(rate.Limit(20), 20),
		seekLimiter:  rate.NewLimiter(rate.Limit(10), 5),
		speedLimiter: rate.NewLimiter(rate.Limit(10), 5),
		voidBreakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}

	p.pushBreaker = gobreaker.NewCircuitBreaker[PushResult](breakerSettings("push"))
	p.clearBreaker = gobreaker.NewCircuitBreaker[ClearResult](breakerSettings("clear"))
	for _, name := range []string{"start", "stop", "pause", "skip_next", "skip_prev", "seek", "set_speed", "set_repeat", "set_shuffle"} {
		p.voidBreakers[name] = gobreaker.NewCircuitBreaker[struct{}](breakerSettings(name))
	}
	return p
}

func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			corelog.For("transport").Debug().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}
}

// ErrTransportUnavailable names the condition of an open breaker or a
// failed underlying call. Proxy's methods do not return it: they log
// the failure once per command and report false, per spec.md §7's
// "Transport call failure: log once; return false to caller; do not
// mutate state".
var ErrTransportUnavailable = errors.New("transport: call failed or circuit open")

func (p *Proxy) logOnce(command string, err error) {
	corelog.Once("transport:"+command, func() {
		corelog.For("transport").Error().Str("command", command).Err(err).Msg("transport call failed")
	})
}

// Push sends a push command, rate-limited and breaker-protected.
func (p *Proxy) Push(ctx context.Context, req PushRequest) (PushResult, bool) {
	if !p.pushLimiter.Allow() {
		p.logOnce("push", errors.New("rate limited"))
		return PushResult{}, false
	}
	res, err := p.pushBreaker.Execute(func() (PushResult, error) {
		return p.backend.Push(ctx, req)
	})
	if err != nil {
		p.logOnce("push", err)
		return PushResult{}, false
	}
	return res, true
}

// Clear sends a clear command.
func (p *Proxy) Clear(ctx context.Context, keepFirstN int) (ClearResult, bool) {
	res, err := p.clearBreaker.Execute(func() (ClearResult, error) {
		return p.backend.Clear(ctx, keepFirstN)
	})
	if err != nil {
		p.logOnce("clear", err)
		return ClearResult{}, false
	}
	return res, true
}

func (p *Proxy) void(ctx context.Context, command string, limiter *rate.Limiter, call func(context.Context) error) bool {
	if limiter != nil && !limiter.Allow() {
		p.logOnce(command, errors.New("rate limited"))
		return false
	}
	_, err := p.voidBreakers[command].Execute(func() (struct{}, error) {
		return struct{}{}, call(ctx)
	})
	if err != nil {
		p.logOnce(command, err)
		return false
	}
	return true
}

// Start sends a start command.
func (p *Proxy) Start(ctx context.Context, reason string) bool {
	return p.void(ctx, "start", nil, func(ctx context.Context) error { return p.backend.Start(ctx, reason) })
}

// Stop sends a stop command.
func (p *Proxy) Stop(ctx context.Context, reason string) bool {
	return p.void(ctx, "stop", nil, func(ctx context.Context) error { return p.backend.Stop(ctx, reason) })
}

// Pause sends a pause command.
func (p *Proxy) Pause(ctx context.Context, reason string) bool {
	return p.void(ctx, "pause", nil, func(ctx context.Context) error { return p.backend.Pause(ctx, reason) })
}

// SkipToNext sends a skip-to-next command.
func (p *Proxy) SkipToNext(ctx context.Context) bool {
	return p.void(ctx, "skip_next", nil, func(ctx context.Context) error { return p.backend.SkipToNext(ctx) })
}

// SkipToPrevious sends a skip-to-previous command.
func (p *Proxy) SkipToPrevious(ctx context.Context) bool {
	return p.void(ctx, "skip_prev", nil, func(ctx context.Context) error { return p.backend.SkipToPrevious(ctx) })
}

// Seek sends a seek command, rate-limited.
func (p *Proxy) Seek(ctx context.Context, value int64, units Units) bool {
	return p.void(ctx, "seek", p.seekLimiter, func(ctx context.Context) error { return p.backend.Seek(ctx, value, units) })
}

// SetSpeed sends a set-speed command, rate-limited.
func (p *Proxy) SetSpeed(ctx context.Context, factor float64) bool {
	return p.void(ctx, "set_speed", p.speedLimiter, func(ctx context.Context) error { return p.backend.SetSpeed(ctx, factor) })
}

// SetRepeatMode toggles the player's repeat mode.
func (p *Proxy) SetRepeatMode(ctx context.Context, mode string) bool {
	return p.void(ctx, "set_repeat", nil, func(ctx context.Context) error { return p.backend.SetRepeatMode(ctx, mode) })
}

// SetShuffleMode toggles the player's shuffle mode.
func (p *Proxy) SetShuffleMode(ctx context.Context, mode string) bool {
	return p.void(ctx, "set_shuffle", nil, func(ctx context.Context) error { return p.backend.SetShuffleMode(ctx, mode) })
}
