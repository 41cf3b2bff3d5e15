package control

import (
	"time"

	"github.com/soundboard/playerctld/internal/metrics"
	"github.com/soundboard/playerctld/pkg/crawler"
)

// prefetchLookaheadDelay is the artificial delay start_prefetch_next_item
// may schedule a lookahead with instead of running immediately (spec.md
// §4.I step 3: "Run immediately or with a 3-second delay").
const prefetchLookaheadDelay = 3 * time.Second

// StartPrefetchNextItem implements spec.md §4.I's prefetch pipeline
// entry point. fromWhere names the bookmark to resolve a starting
// cursor from; when it is BookmarkPrefetchCursor the resolution falls
// back through PREFETCH_CURSOR -> CURRENTLY_PLAYING -> ABOUT_TO_PLAY.
// immediate controls whether the find-next runs now or after
// prefetchLookaheadDelay.
func (c *Control) StartPrefetchNextItem(fromWhere crawler.Bookmark, direction crawler.Direction, immediate bool) bool {
	c.mu.Lock()
	if !c.isActiveControllerLocked() || c.crawler == nil || c.prefetchFind != nil {
		c.mu.Unlock()
		return false
	}
	if c.skipper != nil && c.skipper.IsActive() {
		c.mu.Unlock()
		return false
	}
	source := c.source
	data := c.data
	handle := c.crawler
	c.mu.Unlock()

	if source == nil || data == nil {
		return false
	}
	if data.Queue.Len() >= source.Permissions().MaxPrefetch {
		return false
	}

	var start crawler.Cursor
	if fromWhere == crawler.BookmarkPrefetchCursor {
		cur, ok := handle.GetBookmarks(crawler.BookmarkPrefetchCursor, crawler.BookmarkCurrentlyPlaying, crawler.BookmarkAboutToPlay)
		if !ok {
			return false
		}
		start = cur
	} else if cur, ok := handle.GetBookmark(fromWhere); ok {
		start = cur.Clone()
		handle.Bookmark(crawler.BookmarkPrefetchCursor, start)
	} else {
		return false
	}

	req := crawler.FindNextRequest{
		Desc:      "prefetch",
		Tag:       crawler.OpTag("PREFETCH"),
		Recursive: crawler.NonRecursive,
		Direction: direction,
		Start:     start,
		Mode:      crawler.FindModePrefetch,
	}

	delay := prefetchLookaheadDelay
	if immediate {
		delay = 0
	}

	op := handle.MkOpFindNext(req, func(op *crawler.FindNextOp) { c.foundPrefetchedItem(op, direction) }, nil)

	c.mu.Lock()
	c.prefetchFind = op
	c.mu.Unlock()

	metrics.PrefetchesStartedTotal.Inc()
	handle.RunFindNext(op, delay)
	return true
}

// foundPrefetchedItem is the find-next completion hook for a prefetch
// lookahead (spec.md §4.I step 4).
func (c *Control) foundPrefetchedItem(op *crawler.FindNextOp, direction crawler.Direction) {
	c.mu.Lock()
	if c.prefetchFind == op {
		c.prefetchFind = nil
	}
	source := c.source
	handle := c.crawler
	c.mu.Unlock()

	if op.IsOpCanceled() {
		return
	}

	res := op.Result()
	switch res.PositionalState {
	case crawler.PositionReachedEndOfList:
		metrics.ObservePrefetchFinished("end_of_list")
		if direction == crawler.DirectionForward {
			c.notifyFinished(FinishedPrefetching)
		}
		return
	case crawler.PositionReachedStartOfList:
		metrics.ObservePrefetchFinished("start_of_list")
		if direction == crawler.DirectionBackward {
			c.StartPrefetchNextItem(crawler.BookmarkPrefetchCursor, crawler.DirectionForward, false)
		}
		return
	case crawler.PositionSomewhereInList:
		if source == nil || !source.Permissions().CanPrefetchForGapless || handle == nil || res.Position == nil {
			return
		}
		listID, streamKey, md, cur, ok := res.Position.Extract()
		if !ok {
			return
		}
		req := crawler.GetURIsRequest{Desc: "prefetch", Position: res.Position, Metadata: md}
		urisOp := handle.MkOpGetURIs(req, func(urisOp *crawler.GetURIsOp) {
			c.foundPrefetchedItemURIs(urisOp, direction, listID, streamKey, cur)
		}, nil)

		c.mu.Lock()
		c.prefetchURIs = urisOp
		c.mu.Unlock()

		handle.RunGetURIs(urisOp, 0)
	}
}

// foundPrefetchedItemURIs is the get-uris completion hook for a
// prefetch lookahead (spec.md §4.I step 5).
func (c *Control) foundPrefetchedItemURIs(op *crawler.GetURIsOp, direction crawler.Direction, listID string, streamKey []byte, cur crawler.Cursor) {
	c.mu.Lock()
	if c.prefetchURIs == op {
		c.prefetchURIs = nil
	}
	data := c.data
	c.mu.Unlock()

	if op.IsOpCanceled() {
		return
	}

	res := op.Result()
	if op.IsOpFailure() || res.HasNoURIs {
		c.StartPrefetchNextItem(crawler.BookmarkPrefetchCursor, direction, false)
		return
	}
	if len(res.StreamKey) > 0 {
		streamKey = res.StreamKey
	}

	intent := playNewModeForIntentFromData(data)
	c.queueItemFromOp(streamKey, res.Metadata, res.DirectURIs, res.SortedLinks, listID, cur, InsertAppend, intent)

	c.StartPrefetchNextItem(crawler.BookmarkPrefetchCursor, direction, false)
}

func (c *Control) notifyFinished(reason FinishedReason) {
	c.mu.Lock()
	fn := c.finishedNotify
	c.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}
