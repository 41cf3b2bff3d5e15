package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/soundboard/playerctld/pkg/audiosource"
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/metadata"
	"github.com/soundboard/playerctld/pkg/permissions"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/streamid"
	"github.com/soundboard/playerctld/pkg/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCursor struct{ label string }

func (c *fakeCursor) Clone() crawler.Cursor    { return &fakeCursor{label: c.label} }
func (c *fakeCursor) SyncedWithPosition() bool { return true }
func (c *fakeCursor) String() string           { return c.label }

// fakeCrawlerBackend serves both find-next and get-uris from
// pre-scripted results queues, mimicking a list crawler that always
// lands on the next scripted item.
type fakeCrawlerBackend struct {
	mu        sync.Mutex
	findNext  []crawler.FindNextResult
	getURIs   []crawler.GetURIsResult
	findCalls int
	urisCalls int
}

func (b *fakeCrawlerBackend) FindNext(ctx context.Context, req crawler.FindNextRequest) (crawler.FindNextResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.findCalls++
	if len(b.findNext) == 0 {
		return crawler.FindNextResult{PositionalState: crawler.PositionReachedEndOfList}, nil
	}
	res := b.findNext[0]
	b.findNext = b.findNext[1:]
	return res, nil
}

func (b *fakeCrawlerBackend) GetURIs(ctx context.Context, req crawler.GetURIsRequest) (crawler.GetURIsResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.urisCalls++
	if len(b.getURIs) == 0 {
		return crawler.GetURIsResult{HasNoURIs: true}, nil
	}
	res := b.getURIs[0]
	b.getURIs = b.getURIs[1:]
	return res, nil
}

func newPosition(listID string, streamKey []byte) *crawler.Position {
	return &crawler.Position{
		ListID:    listID,
		StreamKey: streamKey,
		Metadata:  metadata.New(),
		Cursor:    &fakeCursor{label: listID},
	}
}

// fakeTransportBackend records every call it receives; pushed reports
// each Push request on a buffered channel so tests can synchronize
// with the asynchronous get-uris completion callback.
type fakeTransportBackend struct {
	mu            sync.Mutex
	pushed        chan transport.PushRequest
	started       int
	paused        int
	stopped       int
	pushIsPlaying bool
}

func newFakeTransportBackend() *fakeTransportBackend {
	return &fakeTransportBackend{pushed: make(chan transport.PushRequest, 8)}
}

func (f *fakeTransportBackend) Push(ctx context.Context, req transport.PushRequest) (transport.PushResult, error) {
	f.pushed <- req
	return transport.PushResult{IsPlaying: f.pushIsPlaying}, nil
}
func (f *fakeTransportBackend) Clear(ctx context.Context, keepFirstN int) (transport.ClearResult, error) {
	return transport.ClearResult{}, nil
}
func (f *fakeTransportBackend) Start(ctx context.Context, reason string) error {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
	return nil
}
func (f *fakeTransportBackend) Stop(ctx context.Context, reason string) error {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
	return nil
}
func (f *fakeTransportBackend) Pause(ctx context.Context, reason string) error {
	f.mu.Lock()
	f.paused++
	f.mu.Unlock()
	return nil
}
func (f *fakeTransportBackend) SkipToNext(ctx context.Context) error     { return nil }
func (f *fakeTransportBackend) SkipToPrevious(ctx context.Context) error { return nil }
func (f *fakeTransportBackend) Seek(ctx context.Context, value int64, units transport.Units) error {
	return nil
}
func (f *fakeTransportBackend) SetSpeed(ctx context.Context, factor float64) error    { return nil }
func (f *fakeTransportBackend) SetRepeatMode(ctx context.Context, mode string) error  { return nil }
func (f *fakeTransportBackend) SetShuffleMode(ctx context.Context, mode string) error { return nil }

func (f *fakeTransportBackend) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

type testRig struct {
	c       *Control
	handle  *crawler.Handle
	backend *fakeCrawlerBackend
	xport   *fakeTransportBackend
	data    *playerdata.PlayerData
	source  *audiosource.Source
}

func newTestRig(t *testing.T, perms permissions.Set) *testRig {
	t.Helper()
	alloc := streamid.New(1, streamid.DefaultMaxLive)
	backend := &fakeCrawlerBackend{}
	handle := crawler.NewHandle(backend, backend)
	xport := newFakeTransportBackend()

	c := New(alloc)
	data := playerdata.New(alloc)
	source := audiosource.New("test-source", perms)
	source.Request()
	source.SelectedNotification()

	c.PlugPlayerData(data)
	c.PlugCrawlerHandle(handle)
	c.PlugAudioSource(source)
	c.PlugTransports(transport.New(xport), nil)
	c.SourceSelectedNotification("test-source")

	t.Cleanup(func() { c.Unplug(true) })

	return &testRig{c: c, handle: handle, backend: backend, xport: xport, data: data, source: source}
}

func TestPlayQueuesFoundPositionAndPushesToTransport(t *testing.T) {
	rig := newTestRig(t, permissions.Default())

	rig.backend.findNext = []crawler.FindNextResult{
		{PositionalState: crawler.PositionSomewhereInList, Position: newPosition("list-1", []byte("key-1"))},
	}
	rig.backend.getURIs = []crawler.GetURIsResult{
		{DirectURIs: []string{"http://example/1"}},
	}

	op := rig.handle.MkOpFindNext(crawler.FindNextRequest{Direction: crawler.DirectionForward}, nil, nil)
	rig.handle.RunFindNext(op, 0)
	select {
	case <-op.Done():
	case <-time.After(time.Second):
		t.Fatal("find-next never completed")
	}

	require.True(t, rig.c.Play(op, "user"))

	select {
	case req := <-rig.xport.pushed:
		require.Equal(t, "http://example/1", req.URI)
	case <-time.After(time.Second):
		t.Fatal("expected a push to reach the transport")
	}

	require.Eventually(t, func() bool { return rig.xport.startCount() > 0 }, time.Second, 10*time.Millisecond)
}

func TestPlayRejectedWhenSourceCannotPlay(t *testing.T) {
	rig := newTestRig(t, permissions.None())
	require.False(t, rig.c.Play(nil, "user"))
}

func TestPlayRejectedWhenNotActiveController(t *testing.T) {
	rig := newTestRig(t, permissions.Default())
	rig.c.SourceSelectedNotification("someone-else")
	require.False(t, rig.c.Play(nil, "user"))
}

func TestStopRejectedWhenNotActiveController(t *testing.T) {
	rig := newTestRig(t, permissions.Default())
	rig.c.SourceSelectedNotification("someone-else")
	require.False(t, rig.c.Stop("user"))
}

func TestStopSetsIntentionAndCallsTransport(t *testing.T) {
	rig := newTestRig(t, permissions.Default())
	require.True(t, rig.c.Stop("user"))
	require.Equal(t, playerdata.Stopping, rig.data.Intention())

	rig.data.SetPlayerState(playerdata.Stopped)
	require.Equal(t, OutcomeStopped, rig.c.StopNotificationOK(streamid.Invalid))
}

func TestSkipForwardFallsBackToDirectTransportWithNoCrawler(t *testing.T) {
	alloc := streamid.New(1, streamid.DefaultMaxLive)
	xport := newFakeTransportBackend()
	c := New(alloc)
	data := playerdata.New(alloc)
	source := audiosource.New("s", permissions.Default())
	source.Request()
	source.SelectedNotification()

	c.PlugPlayerData(data)
	c.PlugAudioSource(source)
	c.PlugTransports(transport.New(xport), nil)
	c.SourceSelectedNotification("s")

	require.True(t, c.SkipForward())
}

func TestSkipForwardOffEndOfListArmsJumpBackToCurrentlyPlaying(t *testing.T) {
	rig := newTestRig(t, permissions.Default())
	rig.handle.Bookmark(crawler.BookmarkCurrentlyPlaying, &fakeCursor{label: "currently-playing"})

	rig.backend.findNext = []crawler.FindNextResult{
		{PositionalState: crawler.PositionReachedEndOfList},
		{PositionalState: crawler.PositionSomewhereInList, Position: newPosition("jump-back-list", []byte("jb-key"))},
	}
	rig.backend.getURIs = []crawler.GetURIsResult{
		{DirectURIs: []string{"http://example/jump-back"}},
	}

	require.True(t, rig.c.SkipForward())

	select {
	case req := <-rig.xport.pushed:
		require.Equal(t, "http://example/jump-back", req.URI, "jump-back should queue the crawler-found position, not a raw SkipToNext")
	case <-time.After(time.Second):
		t.Fatal("expected jump-back-to-currently-playing to push the found item")
	}
}

func TestSourceSelectedNotificationHandsOverToForceTransport(t *testing.T) {
	alloc := streamid.New(1, streamid.DefaultMaxLive)
	primaryBackend := newFakeTransportBackend()
	forceBackend := newFakeTransportBackend()

	c := New(alloc)
	data := playerdata.New(alloc)
	source := audiosource.New("mine", permissions.Default())
	source.Request()
	source.SelectedNotification()

	c.PlugPlayerData(data)
	c.PlugAudioSource(source)
	c.PlugTransports(transport.New(primaryBackend), transport.New(forceBackend))
	c.SourceSelectedNotification("mine")
	require.True(t, source.IsSelected())

	c.SourceSelectedNotification("other")
	require.False(t, source.IsSelected())

	select {
	case <-forceBackend.pushed:
		t.Fatal("force backend should only see Stop, not Push")
	default:
	}
	require.Equal(t, 1, forceBackend.stopped)
	require.Equal(t, 0, primaryBackend.stopped)
}

func TestStopNotificationWithErrorRetriesRetryableNetworkError(t *testing.T) {
	rig := newTestRig(t, permissions.Default())

	rig.backend.findNext = []crawler.FindNextResult{
		{PositionalState: crawler.PositionSomewhereInList, Position: newPosition("list-1", []byte("key-1"))},
	}
	rig.backend.getURIs = []crawler.GetURIsResult{
		{DirectURIs: []string{"http://example/1"}},
	}
	op := rig.handle.MkOpFindNext(crawler.FindNextRequest{Direction: crawler.DirectionForward}, nil, nil)
	rig.handle.RunFindNext(op, 0)
	<-op.Done()
	require.True(t, rig.c.Play(op, "user"))

	var id streamid.ID
	select {
	case req := <-rig.xport.pushed:
		id = req.StreamID
	case <-time.After(time.Second):
		t.Fatal("expected initial push")
	}

	rig.backend.getURIs = []crawler.GetURIsResult{{DirectURIs: []string{"http://example/1"}}}
	outcome := rig.c.StopNotificationWithError(id, "io.net", false)
	require.Equal(t, OutcomeQueued, outcome)

	select {
	case req := <-rig.xport.pushed:
		require.Equal(t, id, req.StreamID, "replay must re-push the same stream id, not mint a new one")
	case <-time.After(time.Second):
		t.Fatal("expected replay to re-push the stream")
	}
}

func TestStopNotificationWithErrorPermanentDomainRemovesStream(t *testing.T) {
	rig := newTestRig(t, permissions.Default())

	rig.backend.findNext = []crawler.FindNextResult{
		{PositionalState: crawler.PositionSomewhereInList, Position: newPosition("list-1", []byte("key-1"))},
	}
	rig.backend.getURIs = []crawler.GetURIsResult{{DirectURIs: []string{"http://example/1"}}}
	op := rig.handle.MkOpFindNext(crawler.FindNextRequest{Direction: crawler.DirectionForward}, nil, nil)
	rig.handle.RunFindNext(op, 0)
	<-op.Done()
	require.True(t, rig.c.Play(op, "user"))

	var id streamid.ID
	select {
	case req := <-rig.xport.pushed:
		id = req.StreamID
	case <-time.After(time.Second):
		t.Fatal("expected initial push")
	}

	outcome := rig.c.StopNotificationWithError(id, "data.permanent", false)
	require.Equal(t, OutcomeStopped, outcome)
	require.Equal(t, 0, rig.data.Queue.Len())
}
