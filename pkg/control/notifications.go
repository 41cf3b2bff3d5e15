package control

import (
	"context"

	"github.com/soundboard/playerctld/internal/metrics"
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/streamid"
)

// PlayNotification implements spec.md §4.I's play_notification.
func (c *Control) PlayNotification(id streamid.ID, isNewStream bool, reason string) {
	c.retryLedger.Playing(id)

	c.mu.Lock()
	if isNewStream {
		c.prefetchAfterFailure = crawler.DirectionForward
	}
	data := c.data
	handle := c.crawler
	source := c.source
	c.mu.Unlock()

	if data == nil {
		return
	}

	if rec, ok := data.Queue.Get(id); ok && handle != nil && rec.OriginatingCursor != nil {
		handle.Bookmark(crawler.BookmarkCurrentlyPlaying, rec.OriginatingCursor)
		handle.Bookmark(crawler.BookmarkAboutToPlay, rec.OriginatingCursor)
	}
	if source != nil {
		source.ResumeData = id
	}

	c.enforceIntent()
}

// classifyStop implements spec.md §4.I's stop-notification
// classification table.
func classifyStop(headID, notifiedID streamid.ID, isOurs func(streamid.ID) bool, isQueued func(streamid.ID) bool) StopClassification {
	if headID != streamid.Invalid {
		if !isOurs(notifiedID) {
			return ClassificationUnexpectedlyNotOurs
		}
		if notifiedID == headID {
			return ClassificationOursAsExpected
		}
		if isQueued(notifiedID) {
			return ClassificationOursQueued
		}
		return ClassificationOursWrongID
	}

	if notifiedID == streamid.Invalid {
		return ClassificationEmptyAsExpected
	}
	if !isOurs(notifiedID) {
		return ClassificationNotOurs
	}
	return ClassificationUnexpectedlyOurs
}

// StopNotificationOK implements spec.md §4.I's stop_notification_ok.
func (c *Control) StopNotificationOK(id streamid.ID) StopOutcome {
	c.mu.Lock()
	data := c.data
	alloc := c.alloc
	c.mu.Unlock()
	if data == nil {
		return OutcomeStopped
	}

	head := data.Queue.InFlight()
	if head == streamid.Invalid {
		head = data.Queue.Head()
	}
	isQueued := func(want streamid.ID) bool {
		for _, qid := range data.Queue.QueueIDs() {
			if qid == want {
				return true
			}
		}
		return false
	}
	class := classifyStop(head, id, alloc.IsOurs, isQueued)

	if class == ClassificationOursQueued {
		data.StreamHasChanged(id)
	}

	intent := data.Intention()
	if intent == playerdata.Stopping || intent == playerdata.Nothing {
		c.clearResumeData()
		return OutcomeStopped
	}

	c.playerHasStopped(id)
	c.retryLedger.Reset()

	c.mu.Lock()
	prefetching := c.prefetchFind != nil
	c.mu.Unlock()

	if !prefetching && data.Queue.Len() == 0 {
		return OutcomeStopped
	}

	proxy := c.transportLocked()
	if proxy != nil {
		proxy.Start(context.Background(), "still searching")
	}
	return OutcomeQueued
}

// ParsedErrorID is error_id split per spec.md §6/§7's strict
// "<domain>.<code>" grammar.
type ParsedErrorID struct {
	Domain string
	Code   string
}

// StopNotificationWithError implements spec.md §4.I's
// stop_notification_with_error.
func (c *Control) StopNotificationWithError(id streamid.ID, errorID string, urlfifoEmpty bool) StopOutcome {
	parsed, ok := ParseErrorID(errorID)
	if !ok {
		return c.permanentFailure(id)
	}

	if parsed.Domain == "flow" && parsed.Code == "stopped" {
		return OutcomeQueued
	}

	c.mu.Lock()
	source := c.source
	c.mu.Unlock()

	retryable := parsed.Domain == "io" && (parsed.Code == "net" || parsed.Code == "nourl" || parsed.Code == "protocol")
	retryable = retryable || (parsed.Domain == "data" && parsed.Code == "broken" && source != nil && source.Permissions().RetryIfStreamBroken)

	if retryable {
		if c.retryLedger.Retry(id) {
			c.replay(id)
			return OutcomeQueued
		}
		metrics.RetriesExhaustedTotal.Inc()
	}

	return c.permanentFailure(id)
}

// permanentFailure implements the "otherwise remove the stream..."
// branch shared by the retry-exhausted and permanent-error paths.
func (c *Control) permanentFailure(id streamid.ID) StopOutcome {
	c.mu.Lock()
	data := c.data
	source := c.source
	c.mu.Unlock()
	if data == nil {
		return OutcomeStopped
	}

	data.Queue.RemoveFront(map[streamid.ID]bool{id: true})
	c.retryLedger.Reset()

	if source == nil || !source.Permissions().CanSkipOnError {
		return OutcomeStopped
	}

	if data.Queue.Head() != streamid.Invalid {
		data.Queue.ShiftIfNotFlying()
		return OutcomeQueued
	}

	c.mu.Lock()
	dir := c.prefetchAfterFailure
	c.mu.Unlock()
	c.StartPrefetchNextItem(crawler.BookmarkPrefetchCursor, dir, true)
	return OutcomeStopped
}

// replay re-pushes id to the player as the sole item (REPLACE_ALL),
// then re-pushes every other currently queued id behind it in order
// (APPEND, keeping what's already there), per spec.md §4.I's retry
// path. Both id and each other id are the existing queue records —
// replay never mints a new stream id; it only re-sends what is
// already in the container.
func (c *Control) replay(id streamid.ID) {
	c.mu.Lock()
	data := c.data
	intent := playerdata.Nothing
	if data != nil {
		intent = data.Intention()
	}
	c.mu.Unlock()
	if data == nil {
		return
	}

	if _, ok := data.Queue.Get(id); !ok {
		return
	}
	rest := data.Queue.QueueIDs()

	c.queueStreamOrForget(id, InsertReplaceAll, playNewModeForIntent(intent))

	for _, other := range rest {
		if other == id {
			continue
		}
		if _, ok := data.Queue.Get(other); !ok {
			continue
		}
		c.queueStreamOrForget(other, InsertAppend, playNewModeForIntent(intent))
	}
}

// playerHasStopped clears the bookkeeping that becomes stale once the
// player truly stops: here, the audio source's resume data. Queue
// mutation is handled by the classification branches above
// (OURS_QUEUED's shift, permanentFailure's removal).
func (c *Control) playerHasStopped(id streamid.ID) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	if source != nil {
		source.ResumeData = nil
	}
}

func (c *Control) clearResumeData() {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	if source != nil {
		source.ResumeData = nil
	}
}

// PauseNotification implements spec.md §4.I's pause_notification.
func (c *Control) PauseNotification(id streamid.ID) {
	c.retryLedger.Playing(id)
	c.enforceIntent()
}
