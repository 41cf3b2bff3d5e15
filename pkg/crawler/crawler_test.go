package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCursor struct{ pos int }

func (c fakeCursor) Clone() Cursor            { return c }
func (c fakeCursor) SyncedWithPosition() bool { return true }
func (c fakeCursor) String() string           { return "fake" }

type fakeFindBackend struct {
	result FindNextResult
	err    error
	delay  time.Duration
}

func (b *fakeFindBackend) FindNext(ctx context.Context, req FindNextRequest) (FindNextResult, error) {
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return FindNextResult{}, ctx.Err()
		}
	}
	return b.result, b.err
}

type fakeURIsBackend struct {
	result GetURIsResult
	err    error
}

func (b *fakeURIsBackend) GetURIs(ctx context.Context, req GetURIsRequest) (GetURIsResult, error) {
	return b.result, b.err
}

func TestRunFindNextCompletesSuccessfully(t *testing.T) {
	backend := &fakeFindBackend{result: FindNextResult{PositionalState: PositionSomewhereInList}}
	h := NewHandle(backend, nil)

	done := make(chan *FindNextOp, 1)
	op := h.MkOpFindNext(FindNextRequest{Start: fakeCursor{}}, func(o *FindNextOp) { done <- o }, nil)
	require.True(t, h.RunFindNext(op, 0))

	select {
	case o := <-done:
		require.Equal(t, PositionSomewhereInList, o.Result().PositionalState)
		require.False(t, o.IsOpFailure())
		require.False(t, o.IsOpCanceled())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

func TestStoringNewFindNextCancelsPrevious(t *testing.T) {
	backend := &fakeFindBackend{delay: 200 * time.Millisecond}
	h := NewHandle(backend, nil)

	first := h.MkOpFindNext(FindNextRequest{}, nil, nil)
	h.RunFindNext(first, 0)

	second := h.MkOpFindNext(FindNextRequest{}, nil, nil)
	h.RunFindNext(second, 0)

	select {
	case <-first.Done():
		require.True(t, first.IsOpCanceled())
	case <-time.After(time.Second):
		t.Fatal("first op was never canceled")
	}

	h.Unplug()
}

func TestFilterSuppressesCanceledCompletion(t *testing.T) {
	backend := &fakeFindBackend{delay: 200 * time.Millisecond}
	h := NewHandle(backend, nil)

	called := false
	op := h.MkOpFindNext(FindNextRequest{}, func(o *FindNextOp) { called = true },
		func(o *FindNextOp) bool { return !o.IsOpCanceled() })
	h.RunFindNext(op, 0)
	op.Cancel()

	<-op.Done()
	require.True(t, op.IsOpCanceled())
	require.False(t, called, "onComplete must be suppressed for a canceled op when the filter rejects it")
}

func TestUnplugWaitsForInFlightGoroutines(t *testing.T) {
	backend := &fakeFindBackend{delay: 50 * time.Millisecond}
	h := NewHandle(backend, &fakeURIsBackend{})

	op := h.MkOpFindNext(FindNextRequest{}, nil, nil)
	h.RunFindNext(op, 0)

	h.Unplug()
	require.True(t, op.IsOpCanceled() || op.State() == OpSucceeded)
}

func TestBookmarksOverwriteNotStack(t *testing.T) {
	h := NewHandle(nil, nil)
	h.Bookmark(BookmarkPrefetchCursor, fakeCursor{pos: 1})
	h.Bookmark(BookmarkPrefetchCursor, fakeCursor{pos: 2})

	c, ok := h.GetBookmark(BookmarkPrefetchCursor)
	require.True(t, ok)
	require.Equal(t, 2, c.(fakeCursor).pos)
}

func TestGetBookmarksFallsThroughInOrder(t *testing.T) {
	h := NewHandle(nil, nil)
	h.Bookmark(BookmarkCurrentlyPlaying, fakeCursor{pos: 7})

	c, ok := h.GetBookmarks(BookmarkPrefetchCursor, BookmarkCurrentlyPlaying, BookmarkAboutToPlay)
	require.True(t, ok)
	require.Equal(t, 7, c.(fakeCursor).pos)
}

func TestPositionExtractOnce(t *testing.T) {
	p := &Position{ListID: "list-1", StreamKey: []byte("key")}
	listID, key, _, _, ok := p.Extract()
	require.True(t, ok)
	require.Equal(t, "list-1", listID)
	require.Equal(t, []byte("key"), key)

	_, _, _, _, ok = p.Extract()
	require.False(t, ok, "second Extract must fail")
}

func TestGetURIsRunsAndCompletes(t *testing.T) {
	backend := &fakeURIsBackend{result: GetURIsResult{DirectURIs: []string{"http://x"}}}
	h := NewHandle(nil, backend)

	done := make(chan *GetURIsOp, 1)
	op := h.MkOpGetURIs(GetURIsRequest{}, func(o *GetURIsOp) { done <- o }, nil)
	require.True(t, h.RunGetURIs(op, 0))

	select {
	case o := <-done:
		require.Equal(t, []string{"http://x"}, o.Result().DirectURIs)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	h.Unplug()
}
