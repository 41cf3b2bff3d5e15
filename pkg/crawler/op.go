package crawler

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// OpState is the lifecycle of any crawler task object (spec.md §9:
// "model each find-next / get-uris as an owned task object with
// states {pending, succeeded, failed, canceled}").
type OpState int

const (
	OpPending OpState = iota
	OpSucceeded
	OpFailed
	OpCanceled
)

func (s OpState) String() string {
	switch s {
	case OpSucceeded:
		return "succeeded"
	case OpFailed:
		return "failed"
	case OpCanceled:
		return "canceled"
	default:
		return "pending"
	}
}

// opCore is embedded by FindNextOp and GetURIsOp: the shared one-shot
// completion channel, cancellation, and state bookkeeping every
// crawler task object needs.
type opCore struct {
	mu sync.Mutex

	id    string
	tag   OpTag
	desc  string
	state OpState
	err   error

	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newOpCore(tag OpTag, desc string) *opCore {
	ctx, cancel := context.WithCancel(context.Background())
	return &opCore{
		id:     uuid.NewString(),
		tag:    tag,
		desc:   desc,
		state:  OpPending,
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the op's own cancellation context: canceled exactly
// when Cancel is called.
func (o *opCore) Context() context.Context { return o.ctx }

// ID returns the correlation id stamped on this op at creation.
func (o *opCore) ID() string { return o.id }

// Tag returns the op's purpose tag (PREFETCH, SKIP, PLAY, ...).
func (o *opCore) Tag() OpTag { return o.tag }

// Cancel requests cancellation. Safe to call from any goroutine, any
// number of times, before or after completion. If the op has already
// completed, Cancel is a no-op.
func (o *opCore) Cancel() {
	o.cancel()
}

// Done returns a channel closed once the op reaches a terminal state.
func (o *opCore) Done() <-chan struct{} {
	return o.done
}

// IsOpCanceled reports whether the op's terminal state is "canceled".
func (o *opCore) IsOpCanceled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == OpCanceled
}

// IsOpFailure reports whether the op's terminal state is "failed".
func (o *opCore) IsOpFailure() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == OpFailed
}

// State returns the op's current lifecycle state.
func (o *opCore) State() OpState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// finish transitions the op to a terminal state exactly once. Calling
// finish more than once is a no-op after the first call wins.
func (o *opCore) finish(state OpState, err error) (already bool) {
	o.mu.Lock()
	if o.state != OpPending {
		o.mu.Unlock()
		return true
	}
	o.state = state
	o.err = err
	o.mu.Unlock()
	close(o.done)
	return false
}
