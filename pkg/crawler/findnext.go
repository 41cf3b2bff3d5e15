package crawler

import (
	"context"

	"github.com/soundboard/playerctld/pkg/metadata"
)

// FindNextResult is what a completed find-next op carries: where the
// search landed, whatever metadata the crawler already has for the
// item it found, and — if it found one — an extractable Position.
type FindNextResult struct {
	PositionalState PositionalState
	Metadata        *metadata.Set
	Position        *Position
}

// FindNextBackend performs the actual list search. It is implemented
// by the (out of scope) list crawler; the core only holds the
// contract. Run should respect ctx cancellation and return promptly
// once canceled.
type FindNextBackend interface {
	FindNext(ctx context.Context, req FindNextRequest) (FindNextResult, error)
}

// FindNextRequest bundles a find-next op's parameters, mirroring
// spec.md §4.E's mk_op_find_next signature.
type FindNextRequest struct {
	Desc      string
	Tag       OpTag
	Recursive RecursiveMode
	Direction Direction
	Start     Cursor
	Title     string
	Mode      FindMode
}

// FindNextOp is the task object a find-next search is modeled as.
type FindNextOp struct {
	*opCore

	req    FindNextRequest
	result FindNextResult

	onComplete func(*FindNextOp)
	filter     func(*FindNextOp) bool // return false to suppress onComplete
}

// NewFindNextOp constructs a find-next op. It does not start running
// until a Handle's RunFindNext schedules it.
func NewFindNextOp(req FindNextRequest, onComplete func(*FindNextOp), filter func(*FindNextOp) bool) *FindNextOp {
	core := newOpCore(req.Tag, req.Desc)
	return &FindNextOp{opCore: core, req: req, onComplete: onComplete, filter: filter}
}

// Request returns the parameters this op was constructed with.
func (op *FindNextOp) Request() FindNextRequest { return op.req }

// Result returns the op's result. Only meaningful once Done() is
// closed and IsOpFailure()/IsOpCanceled() are both false.
func (op *FindNextOp) Result() FindNextResult {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.result
}

func (op *FindNextOp) run(ctx context.Context, backend FindNextBackend) {
	res, err := backend.FindNext(ctx, op.req)

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
