package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	startErr  error
	startCall int
}

func (f *fakeBackend) Push(ctx context.Context, req PushRequest) (PushResult, error) {
	return PushResult{IsPlaying: true}, nil
}
func (f *fakeBackend) Clear(ctx context.Context, keepFirstN int) (ClearResult, error) {
	return ClearResult{}, nil
}
func (f *fakeBackend) Start(ctx context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCall++
	return f.startErr
}
func (f *fakeBackend) Stop(ctx context.Context, reason string) error            { return nil }
func (f *fakeBackend) Pause(ctx context.Context, reason string) error           { return nil }
func (f *fakeBackend) SkipToNext(ctx context.Context) error                     { return nil }
func (f *fakeBackend) SkipToPrevious(ctx context.Context) error                 { return nil }
func (f *fakeBackend) Seek(ctx context.Context, value int64, units Units) error { return nil }
func (f *fakeBackend) SetSpeed(ctx context.Context, factor float64) error       { return nil }
func (f *fakeBackend) SetRepeatMode(ctx context.Context, mode string) error     { return nil }
func (f *fakeBackend) SetShuffleMode(ctx context.Context, mode string) error    { return nil }

func TestPushSucceedsAndReportsIsPlaying(t *testing.T) {
	p := New(&fakeBackend{})
	res, ok := p.Push(context.Background(), PushRequest{URI: "http://x"})
	require.True(t, ok)
	require.True(t, res.IsPlaying)
}

func TestStartFailureDoesNotPanicAndReturnsFalse(t *testing.T) {
	p := New(&fakeBackend{startErr: errors.New("boom")})
	ok := p.Start(context.Background(), "user")
	require.False(t, ok)
}

func TestCircuitOpensAfterThreeConsecutiveFailures(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("boom")}
	p := New(backend)

	for i := 0; i < consecutiveFailuresToTrip; i++ {
		require.False(t, p.Start(context.Background(), "user"))
	}

	callsBeforeOpen := backend.startCall
	require.False(t, p.Start(context.Background(), "user"))
	require.Equal(t, callsBeforeOpen, backend.startCall, "breaker should fail fast without calling the backend")
}

func TestIndependentBreakersPerCommandKind(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("boom")}
	p := New(backend)

	for i := 0; i < consecutiveFailuresToTrip; i++ {
		require.False(t, p.Start(context.Background(), "user"))
	}
	require.False(t, p.Start(context.Background(), "user"), "start breaker should now be open")

	// A different command kind is unaffected by start's open breaker.
	require.True(t, p.Stop(context.Background(), "user"))
}

func TestRateLimiterRejectsBurstBeyondBudget(t *testing.T) {
	p := New(&fakeBackend{})
	accepted := 0
	for i := 0; i < 40; i++ {
		if _, ok := p.Push(context.Background(), PushRequest{}); ok {
			accepted++
		}
	}
	require.Less(t, accepted, 40, "burst beyond the token bucket should be throttled")
}
