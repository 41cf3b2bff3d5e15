package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundboard/playerctld/internal/corelog"
)

// Handle is the opaque crawler handle the core consumes (spec.md
// §4.E): a place to stash bookmarks and the single owner of "at most
// one find-next and at most one get-uris op outstanding at a time"
// (spec.md §5's ordering guarantee).
type Handle struct {
	findBackend FindNextBackend
	urisBackend GetURIsBackend

	bookmarksMu sync.Mutex
	bookmarks   map[Bookmark]Cursor

	findSlot slot[*FindNextOp]
	urisSlot slot[*GetURIsOp]

	wg errgroup.Group
}

// NewHandle wires a Handle to the backends that actually perform
// searches and URI resolution.
func NewHandle(findBackend FindNextBackend, urisBackend GetURIsBackend) *Handle {
	return &Handle{
		findBackend: findBackend,
		urisBackend: urisBackend,
		bookmarks:   make(map[Bookmark]Cursor),
	}
}

// Bookmark stores a clone of cur under name, overwriting any previous
// value.
func (h *Handle) Bookmark(name Bookmark, cur Cursor) {
	h.bookmarksMu.Lock()
	defer h.bookmarksMu.Unlock()
	if cur == nil {
		delete(h.bookmarks, name)
		return
	}
	h.bookmarks[name] = cur.Clone()
}

// GetBookmark returns the stored cursor for name, if any.
func (h *Handle) GetBookmark(name Bookmark) (Cursor, bool) {
	h.bookmarksMu.Lock()
	defer h.bookmarksMu.Unlock()
	c, ok := h.bookmarks[name]
	return c, ok
}

// GetBookmarks returns the first bookmark among names that is set,
// trying them in order, mirroring spec.md §4.I's prefetch cursor
// resolution fallback (PREFETCH_CURSOR -> CURRENTLY_PLAYING ->
// ABOUT_TO_PLAY).
func (h *Handle) GetBookmarks(names ...Bookmark) (Cursor, bool) {
	h.bookmarksMu.Lock()
	defer h.bookmarksMu.Unlock()
	for _, n := range names {
		if c, ok := h.bookmarks[n]; ok {
			return c, true
		}
	}
	return nil, false
}

// ClearBookmark removes name.
func (h *Handle) ClearBookmark(name Bookmark) {
	h.bookmarksMu.Lock()
	defer h.bookmarksMu.Unlock()
	delete(h.bookmarks, name)
}

// MkOpFindNext constructs a find-next op. The op is not scheduled
// until RunFindNext is called.
func (h *Handle) MkOpFindNext(req FindNextRequest, onComplete func(*FindNextOp), filter func(*FindNextOp) bool) *FindNextOp {
	return NewFindNextOp(req, onComplete, filter)
}

// MkOpGetURIs constructs a get-uris op. The op is not scheduled until
// RunGetURIs is called.
func (h *Handle) MkOpGetURIs(req GetURIsRequest, onComplete func(*GetURIsOp), filter func(*GetURIsOp) bool) *GetURIsOp {
	return NewGetURIsOp(req, onComplete, filter)
}

// RunFindNext installs op as the (sole) outstanding find-next op,
// canceling whatever occupied that slot before, and launches it after
// the given delay (zero for immediate). Returns false if the handle
// has no find-next backend configured.
func (h *Handle) RunFindNext(op *FindNextOp, delay time.Duration) bool {
	if h.findBackend == nil {
		op.finish(OpFailed, errNoBackend)
		return false
	}

	h.findSlot.store(op)

	ctx := op.Context()
	h.wg.Go(func() error {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				op.finish(OpCanceled, ctx.Err())
				h.findSlot.clearIfSame(op)
				return nil
			case <-t.C:
			}
		}
		op.run(ctx, h.findBackend)
		h.findSlot.clearIfSame(op)
		return nil
	})
	return true
}

// RunGetURIs installs op as the (sole) outstanding get-uris op,
// canceling whatever occupied that slot before, and launches it after
// the given delay (zero for immediate). Returns false if the handle has
// no get-uris backend configured.
func (h *Handle) RunGetURIs(op *GetURIsOp, delay time.Duration) bool {
	if h.urisBackend == nil {
		op.finish(OpFailed, errNoBackend)
		return false
	}

	h.urisSlot.store(op)

	ctx := op.Context()
	h.wg.Go(func() error {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				op.finish(OpCanceled, ctx.Err())
				h.urisSlot.clearIfSame(op)
				return nil
			case <-t.C:
			}
		}
		op.run(ctx, h.urisBackend)
		h.urisSlot.clearIfSame(op)
		return nil
	})
	return true
}

// CancelFindNext cancels whatever find-next op is currently
// outstanding, if any.
func (h *Handle) CancelFindNext() { h.findSlot.cancel() }

// CancelGetURIs cancels whatever get-uris op is currently outstanding,
// if any.
func (h *Handle) CancelGetURIs() { h.urisSlot.cancel() }

// CurrentFindNext returns the outstanding find-next op, if any.
func (h *Handle) CurrentFindNext() *FindNextOp { return h.findSlot.get() }

// CurrentGetURIs returns the outstanding get-uris op, if any.
func (h *Handle) CurrentGetURIs() *GetURIsOp { return h.urisSlot.get() }

// Unplug cancels every in-flight operation and blocks until their
// goroutines have actually returned. Per spec.md §5, once Unplug
// returns, no future callback will touch core state — the errgroup
// join is what makes that a guarantee instead of a hope.
func (h *Handle) Unplug() {
	h.CancelFindNext()
	h.CancelGetURIs()
	if err := h.wg.Wait(); err != nil {
		corelog.For("crawler").Debug().Err(err).Msg("unplug: worker returned error")
	}
}

var errNoBackend = &noBackendError{}

type noBackendError struct{}

func (*noBackendError) Error() string { return "crawler: no backend configured for this operation" }
