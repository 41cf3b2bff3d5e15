package crawler

import (
	"context"

	"github.com/soundboard/playerctld/pkg/metadata"
)

// GetURIsResult is what a completed get-uris op carries.
type GetURIsResult struct {
	StreamKey   []byte
	Metadata    *metadata.Set
	DirectURIs  []string
	SortedLinks []string // Airable-style redirect links, already priority-sorted
	HasNoURIs   bool
}

// GetURIsBackend resolves a chosen item's Position to concrete URIs.
// Implemented by the (out of scope) list crawler.
type GetURIsBackend interface {
	GetURIs(ctx context.Context, req GetURIsRequest) (GetURIsResult, error)
}

// GetURIsRequest bundles a get-uris op's parameters.
type GetURIsRequest struct {
	Desc     string
	Position *Position
	Metadata *metadata.Set
}

// GetURIsOp is the task object a URI resolution is modeled as.
type GetURIsOp struct {
	*opCore

	req    GetURIsRequest
	result GetURIsResult

	onComplete func(*GetURIsOp)
	filter     func(*GetURIsOp) bool
}

// NewGetURIsOp constructs a get-uris op. It does not start running
// until a Handle's RunGetURIs schedules it.
func NewGetURIsOp(req GetURIsRequest, onComplete func(*GetURIsOp), filter func(*GetURIsOp) bool) *GetURIsOp {
	core := newOpCore("", req.Desc)
	return &GetURIsOp{opCore: core, req: req, onComplete: onComplete, filter: filter}
}

// Result returns the op's result once complete.
func (op *GetURIsOp) Result() GetURIsResult {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.result
}

func (op *GetURIsOp) run(ctx context.Context, backend GetURIsBackend) {
	res, err := backend.GetURIs(ctx, op.req)

	state := OpSucceeded
	if ctx.Err() != nil {
		state = OpCanceled
	} else if err != nil {
		state = OpFailed
	}

	op.mu.Lock()
	op.result = res
	op.mu.Unlock()

	already := op.finish(state, err)
	if already {
		return
	}

	if op.filter != nil && !op.filter(op) {
		return
	}
	if op.onComplete != nil {
		op.onComplete(op)
	}
}
