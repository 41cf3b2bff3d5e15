package control

import (
	"context"

	"github.com/soundboard/playerctld/pkg/audiosource"
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/skipper"
	"github.com/soundboard/playerctld/pkg/transport"
)

// Play implements spec.md §4.I's play command. findOp, if non-nil, is
// a completed find-next op whose Position should become the next
// thing queued for playing; otherwise Play just asks the already
// selected stream to resume.
func (c *Control) Play(findOp *crawler.FindNextOp, reason string) bool {
	c.mu.Lock()
	source := c.source
	if source == nil || !source.Permissions().CanPlay {
		c.mu.Unlock()
		return false
	}
	if !c.isActiveControllerLocked() {
		c.mu.Unlock()
		return false
	}
	if source.State() == audiosource.Requested {
		source.ResumeData = findOp
		c.mu.Unlock()
		return true
	}

	if findOp != nil {
		if c.crawler != nil {
			c.crawler.CancelFindNext()
		}
		proxy := c.transportLocked()
		data := c.data
		c.mu.Unlock()
		c.handleFoundItemForPlaying(findOp, proxy, data, reason)
		return true
	}

	state := playerdata.Stopped
	if c.data != nil {
		state = c.data.PlayerState()
	}
	proxy := c.transportLocked()
	c.mu.Unlock()

	if state == playerdata.Playing || state == playerdata.Buffering {
		return true
	}
	if proxy == nil {
		return false
	}
	return proxy.Start(context.Background(), reason)
}

// handleFoundItemForPlaying is the completion callback Play installs
// on a user-driven find-next: queue the found item with REPLACE_ALL
// semantics so it starts playing immediately.
func (c *Control) handleFoundItemForPlaying(op *crawler.FindNextOp, proxy *transport.Proxy, data *playerdata.PlayerData, reason string) {
	if op.IsOpCanceled() || op.IsOpFailure() {
		return
	}
	res := op.Result()
	if res.PositionalState != crawler.PositionSomewhereInList || res.Position == nil {
		return
	}
	c.foundItemForPlaying(res.Position, InsertReplaceAll)
}

// Stop implements spec.md §4.I's stop command.
func (c *Control) Stop(reason string) bool {
	c.mu.Lock()
	if c.data == nil || !c.isActiveControllerLocked() {
		c.mu.Unlock()
		return false
	}
	c.data.SetIntention(playerdata.Stopping)
	source := c.source
	proxy := c.transportLocked()
	c.mu.Unlock()

	if source == nil || source.State() != audiosource.Selected || proxy == nil {
		return true
	}
	return proxy.Stop(context.Background(), reason)
}

// Pause implements spec.md §4.I's pause command.
func (c *Control) Pause(reason string) bool {
	c.mu.Lock()
	source := c.source
	if source == nil || !source.Permissions().CanPlay {
		c.mu.Unlock()
		return false
	}
	if c.data == nil || !c.isActiveControllerLocked() {
		c.mu.Unlock()
		return false
	}
	c.data.SetIntention(playerdata.Pausing)
	proxy := c.transportLocked()
	c.mu.Unlock()

	if proxy == nil {
		return false
	}
	return proxy.Pause(context.Background(), reason)
}

// FastWindSetSpeed implements spec.md §4.I's fast_wind_set_speed.
func (c *Control) FastWindSetSpeed(factor float64) bool {
	c.mu.Lock()
	source := c.source
	if factor > 0 && (source == nil || !source.Permissions().CanPlay) {
		c.mu.Unlock()
		return false
	}
	proxy := c.transportLocked()
	c.mu.Unlock()

	if proxy == nil {
		return false
	}
	return proxy.SetSpeed(context.Background(), factor)
}

// SeekStream implements spec.md §4.I's seek_stream.
func (c *Control) SeekStream(value int64, units transport.Units) bool {
	if value < 0 {
		return false
	}
	c.mu.Lock()
	proxy := c.transportLocked()
	c.mu.Unlock()

	if proxy == nil {
		return false
	}
	return proxy.Seek(context.Background(), value, units)
}

// SkipForward implements spec.md §4.I's skip_forward.
func (c *Control) SkipForward() bool { return c.skip(crawler.DirectionForward) }

// SkipBackward implements spec.md §4.I's skip_backward.
func (c *Control) SkipBackward() bool { return c.skip(crawler.DirectionBackward) }

func (c *Control) skip(dir crawler.Direction) bool {
	c.mu.Lock()
	source := c.source
	if source == nil || !c.isActiveControllerLocked() {
		c.mu.Unlock()
		return false
	}
	allowed := dir == crawler.DirectionForward && source.Permissions().CanSkipForward
	allowed = allowed || (dir == crawler.DirectionBackward && source.Permissions().CanSkipBackward)
	if !allowed {
		c.mu.Unlock()
		return false
	}
	handle := c.crawler
	proxy := c.transportLocked()
	sk := c.skipper
	c.mu.Unlock()

	if handle == nil {
		if proxy == nil {
			return false
		}
		if dir == crawler.DirectionForward {
			return proxy.SkipToNext(context.Background())
		}
		return proxy.SkipToPrevious(context.Background())
	}

	done := func(op *crawler.FindNextOp, canceled bool) {
		if canceled || op == nil {
			return
		}
		c.mu.Lock()
		data := c.data
		c.mu.Unlock()
		if op.Result().PositionalState == crawler.PositionSomewhereInList {
			handle.CancelGetURIs()
			if op.Result().Position != nil {
				c.foundItemForPlaying(op.Result().Position, InsertReplaceAll)
			}
			return
		}
		if data != nil {
			c.jumpBackToCurrentlyPlaying(proxy)
		}
	}

	var outcome skipper.Outcome
	if dir == crawler.DirectionForward {
		outcome = sk.ForwardRequest(false, done)
	} else {
		outcome = sk.BackwardRequest(false, done)
	}
	return outcome != skipper.Rejected
}

// runSkipperFindNext is the Skipper's RunFindNext hook: it builds a
// SKIP-tagged find-next op starting from a clone of the
// CURRENTLY_PLAYING (else ABOUT_TO_PLAY) bookmark, stores that clone as
// SKIP_CURSOR, and installs onComplete as its completion callback (spec.md
// §4.I's skip_forward/skip_backward description).
func (c *Control) runSkipperFindNext(dir crawler.Direction, onComplete func(*crawler.FindNextOp)) *crawler.FindNextOp {
	c.mu.Lock()
	handle := c.crawler
	c.mu.Unlock()
	if handle == nil {
		return nil
	}

	handle.CancelFindNext()
	handle.CancelGetURIs()

	start, _ := handle.GetBookmarks(crawler.BookmarkCurrentlyPlaying, crawler.BookmarkAboutToPlay)
	if start != nil {
		start = start.Clone()
		handle.Bookmark(crawler.BookmarkSkipCursor, start)
	}

	req := crawler.FindNextRequest{
		Desc:      "skip",
		Tag:       crawler.OpTag("SKIP"),
		Recursive: crawler.NonRecursive,
		Direction: dir,
		Start:     start,
		Mode:      crawler.FindModeSkip,
	}
	op := handle.MkOpFindNext(req, onComplete, nil)
	handle.RunFindNext(op, 0)
	return op
}

// skipperItemFilter never suppresses a completion callback; Skipper
// itself already distinguishes canceled vs. completed ops.
func (c *Control) skipperItemFilter(*crawler.FindNextOp) bool { return true }

// jumpBackToCurrentlyPlaying arms a find-next back toward whatever is
// currently playing, used when a skip session runs off the end of the
// list (spec.md §4.I: "it arms a jump-back-to-currently-playing op
// instead"). It starts from a clone of the CURRENTLY_PLAYING bookmark,
// mirroring runSkipperFindNext's shape but pinned to that bookmark
// instead of the skip cursor. proxy is only used as a last-resort
// fallback when there is no crawler handle or no bookmark to jump
// back to.
func (c *Control) jumpBackToCurrentlyPlaying(proxy *transport.Proxy) {
	c.mu.Lock()
	handle := c.crawler
	c.mu.Unlock()
	if handle == nil {
		if proxy != nil {
			proxy.SkipToNext(context.Background())
		}
		return
	}

	handle.CancelFindNext()
	handle.CancelGetURIs()

	start, ok := handle.GetBookmark(crawler.BookmarkCurrentlyPlaying)
	if !ok {
		if proxy != nil {
			proxy.SkipToNext(context.Background())
		}
		return
	}
	start = start.Clone()

	req := crawler.FindNextRequest{
		Desc:      "jump_back_to_currently_playing",
		Tag:       crawler.OpTag("JUMP_BACK_TO_CURRENTLY_PLAYING"),
		Recursive: crawler.NonRecursive,
		Direction: crawler.DirectionForward,
		Start:     start,
		Mode:      crawler.FindModeJumpBack,
	}
	op := handle.MkOpFindNext(req, c.onJumpBackComplete, nil)
	handle.RunFindNext(op, 0)
}

// onJumpBackComplete queues whatever the jump-back search found with
// REPLACE_ALL semantics, same as a user-driven play.
func (c *Control) onJumpBackComplete(op *crawler.FindNextOp) {
	if op.IsOpCanceled() || op.IsOpFailure() {
		return
	}
	res := op.Result()
	if res.PositionalState != crawler.PositionSomewhereInList || res.Position == nil {
		return
	}
	c.foundItemForPlaying(res.Position, InsertReplaceAll)
}
