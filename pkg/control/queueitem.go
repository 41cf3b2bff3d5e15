package control

import (
	"context"
	"net/url"
	"strconv"

	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/metadata"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/streamid"
	"github.com/soundboard/playerctld/pkg/transport"
)

// BitrateLimiter drops Airable-style sorted links whose advertised
// nominal bitrate exceeds a configured policy ceiling (spec.md §4.I
// "queue_item_from_op": "finalizes the sorted-links against the
// bitrate limiter"). A zero MaxKbps means no limit.
type BitrateLimiter struct {
	MaxKbps int
}

// DefaultBitrateLimiter returns a limiter with no ceiling.
func DefaultBitrateLimiter() BitrateLimiter { return BitrateLimiter{MaxKbps: 0} }

// Filter returns links unchanged if they are within policy, or nil if
// the item's nominal bitrate exceeds the configured ceiling.
func (b BitrateLimiter) Filter(links []string, md *metadata.Set) []string {
	if b.MaxKbps <= 0 || md == nil {
		return links
	}
	raw, ok := md.Get(metadata.BitrateNominal)
	if !ok {
		return links
	}
	kbps, err := strconv.Atoi(raw)
	if err != nil {
		return links
	}
	if kbps > b.MaxKbps {
		return nil
	}
	return links
}

func keepFirstNFor(mode InsertMode) int {
	switch mode {
	case InsertReplaceQueue:
		return transport.KeepNoneButPlay
	case InsertReplaceAll:
		return transport.KeepNothing
	default:
		return transport.KeepAll
	}
}

// queueItemFromOp installs a new QueuedStream from a resolved
// position's materials (spec.md §4.I "queue_item_from_op"): it
// finalizes sortedLinks against the bitrate limiter, appends to the
// queue, updates the ABOUT_TO_PLAY bookmark when the insert mode
// replaces anything, and hands off to queueStreamOrForget.
func (c *Control) queueItemFromOp(streamKey []byte, md *metadata.Set, directURIs, sortedLinks []string, listID string, cur crawler.Cursor, mode InsertMode, playMode PlayNewMode) (streamid.ID, bool) {
	md = enrichFromLocalFile(md, directURIs)
	sortedLinks = c.bitrate.Filter(sortedLinks, md)

	c.mu.Lock()
	data := c.data
	handle := c.crawler
	c.mu.Unlock()
	if data == nil {
		return streamid.Invalid, false
	}

	id, err := data.Queue.Append(streamKey, md, directURIs, sortedLinks, listID, cur)
	if err != nil {
		return streamid.Invalid, false
	}
	data.RefList(listID)

	if (mode == InsertReplaceQueue || mode == InsertReplaceAll) && handle != nil && cur != nil {
		handle.Bookmark(crawler.BookmarkAboutToPlay, cur)
	}

	ok := c.queueStreamOrForget(id, mode, playMode)
	return id, ok
}

// enrichFromLocalFile layers ID3/FLAC/MP4 tags read from a file:// URI
// among directURIs into md, filling in only fields the crawler left
// empty (spec.md §3.1: local-file enrichment is always best-effort and
// never authoritative). Streams with no local file:// URI are returned
// unchanged.
func enrichFromLocalFile(md *metadata.Set, directURIs []string) *metadata.Set {
	for _, uri := range directURIs {
		u, err := url.Parse(uri)
		if err != nil || u.Scheme != "file" {
			continue
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			continue
		}
		local := metadata.FromLocalFile(path)
		if md == nil {
			return local
		}
		md.MergeMissing(local)
		return md
	}
	return md
}

// resolveFirstURI picks the URI to push for a freshly queued stream.
// Airable sorted links are modeled as already-resolved by the time
// they reach the queue (the redirect resolver the source calls out to
// is out of scope per spec.md §1); direct URIs take priority.
func resolveFirstURI(directURIs, sortedLinks []string) (string, bool) {
	if len(directURIs) > 0 {
		return directURIs[0], true
	}
	if len(sortedLinks) > 0 {
		return sortedLinks[0], true
	}
	return "", false
}

// queueStreamOrForget pushes a just-appended stream to the player
// transport (spec.md §4.I). On FIFO overflow the stream is dropped
// from the container and the operation is reported as failed. On
// success the stream transitions FLOATING -> QUEUED, and — unless the
// player reports it is already playing — a play or pause command
// follows, chosen by playMode.
func (c *Control) queueStreamOrForget(id streamid.ID, mode InsertMode, playMode PlayNewMode) bool {
	c.mu.Lock()
	data := c.data
	proxy := c.transportLocked()
	c.mu.Unlock()
	if data == nil || proxy == nil {
		return false
	}

	rec, ok := data.Queue.Get(id)
	if !ok {
		return false
	}
	uri, ok := resolveFirstURI(rec.DirectURIs, rec.AirableLinks)
	if !ok {
		data.Queue.RemoveAnywhere(id)
		return false
	}

	req := transport.PushRequest{
		StreamID:   id,
		URI:        uri,
		StreamKey:  rec.StreamKey,
		PositionU:  transport.Milliseconds,
		DurationU:  transport.Milliseconds,
		KeepFirstN: keepFirstNFor(mode),
		Metadata:   rec.Metadata,
	}

	res, ok := proxy.Push(context.Background(), req)
	if !ok {
		return false
	}
	if res.FIFOOverflow {
		data.Queue.RemoveAnywhere(id)
		return false
	}

	c.queuedStreamSentToPlayer(id)

	if res.IsPlaying {
		return true
	}
	if playMode == PlayNewModePause {
		return proxy.Pause(context.Background(), "queue_stream_or_forget")
	}
	return proxy.Start(context.Background(), "queue_stream_or_forget")
}

// queuedStreamSentToPlayer transitions id from FLOATING to QUEUED once
// the player has acknowledged the push.
func (c *Control) queuedStreamSentToPlayer(id streamid.ID) {
	c.mu.Lock()
	data := c.data
	c.mu.Unlock()
	if data != nil {
		data.Queue.MarkQueued(id)
	}
}

// foundItemForPlaying is installed as the completion hook wherever the
// source found a position it now wants played (play(), skip's done
// callback). It resolves the position's URIs asynchronously and hands
// the result to queueItemFromOp with the given insert mode.
func (c *Control) foundItemForPlaying(pos *crawler.Position, mode InsertMode) {
	listID, streamKey, md, cur, ok := pos.Extract()
	if !ok {
		return
	}
	c.mu.Lock()
	handle := c.crawler
	intent := playerdata.Nothing
	if c.data != nil {
		intent = c.data.Intention()
	}
	c.mu.Unlock()
	if handle == nil {
		return
	}

	req := crawler.GetURIsRequest{Desc: "play", Position: pos, Metadata: md}
	op := handle.MkOpGetURIs(req, func(op *crawler.GetURIsOp) {
		c.foundItemURIsForPlaying(op, mode, listID, streamKey, cur, intent)
	}, nil)
	handle.RunGetURIs(op, 0)
}

func (c *Control) foundItemURIsForPlaying(op *crawler.GetURIsOp, mode InsertMode, listID string, streamKey []byte, cur crawler.Cursor, intent playerdata.Intention) {
	if op.IsOpCanceled() || op.IsOpFailure() {
		return
	}
	res := op.Result()
	if res.HasNoURIs {
		return
	}
	if len(res.StreamKey) > 0 {
		streamKey = res.StreamKey
	}
	c.queueItemFromOp(streamKey, res.Metadata, res.DirectURIs, res.SortedLinks, listID, cur, mode, playNewModeForIntent(intent))
}
