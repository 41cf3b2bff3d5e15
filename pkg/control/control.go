package control

import (
	"context"
	"sync"

	"github.com/soundboard/playerctld/pkg/audiosource"
	"github.com/soundboard/playerctld/pkg/crawler"
	"github.com/soundboard/playerctld/pkg/permissions"
	"github.com/soundboard/playerctld/pkg/playerdata"
	"github.com/soundboard/playerctld/pkg/retry"
	"github.com/soundboard/playerctld/pkg/skipper"
	"github.com/soundboard/playerctld/pkg/streamid"
	"github.com/soundboard/playerctld/pkg/transport"
)

// FinishedReason names why start_prefetch_next_item's pipeline gave up
// without queuing anything (spec.md §4.I "finished_notification").
type FinishedReason string

const (
	FinishedPrefetching FinishedReason = "PREFETCHING"
)

// Control is the orchestrator (spec.md §4.I). Every exported entry
// point acquires the control lock first, then (as needed) calls into
// PlayerData, whose own mutex is acquired and released per-call rather
// than held for the duration — this is the idiomatic-Go rendering of
// the source's "two recursive mutexes, acquired in a fixed order"
// design: Go has no recursive mutex, so instead the control lock is
// held only for short sections and released before a method calls
// another Control method that takes it; unexported helpers take it
// themselves where they need it, and only the *Locked helpers run with
// it already held. This makes recursion unnecessary rather than
// emulating it.
type Control struct {
	mu sync.Mutex

	data    *playerdata.PlayerData
	crawler *crawler.Handle
	source  *audiosource.Source
	alloc   *streamid.Allocator

	primary *transport.Proxy
	force   *transport.Proxy

	skipper     *skipper.Skipper
	retryLedger *retry.Ledger
	bitrate     BitrateLimiter

	withEnforcedIntentions bool
	prefetchAfterFailure   crawler.Direction

	activeSourceName string

	finishedNotify func(FinishedReason)

	prefetchFind *crawler.FindNextOp
	prefetchURIs *crawler.GetURIsOp
}

// New constructs a Control bound to alloc for minting stream ids.
// Everything else is wired in through the Plug* methods, mirroring
// spec.md §4.I's idempotent-per-category plug model.
func New(alloc *streamid.Allocator) *Control {
	c := &Control{
		alloc:                alloc,
		retryLedger:          retry.New(),
		bitrate:              DefaultBitrateLimiter(),
		prefetchAfterFailure: crawler.DirectionForward,
	}
	return c
}

// PlugPlayerData installs data as the model this Control drives.
// Idempotent: installing the same pointer twice is a no-op.
func (c *Control) PlugPlayerData(data *playerdata.PlayerData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == data {
		return
	}
	c.data = data
	c.skipper = skipper.New(c.runSkipperFindNext, c.skipperItemFilter)
}

// PlugCrawlerHandle installs handle as the crawler this Control
// drives find-next/get-uris operations through.
func (c *Control) PlugCrawlerHandle(handle *crawler.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crawler = handle
}

// PlugAudioSource installs source as the audio source this Control is
// bound to and makes it the active controller.
func (c *Control) PlugAudioSource(source *audiosource.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
	if source != nil {
		c.activeSourceName = source.Name
	}
}

// PlugTransports installs the primary and force player transports.
// force is used only for a stop that must succeed even after this
// source has been logically deselected (spec.md §9 open question).
func (c *Control) PlugTransports(primary, force *transport.Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primary = primary
	c.force = force
}

// PlugPermissions replaces the active source's capability vector
// wholesale.
func (c *Control) PlugPermissions(perms permissions.Set) {
	c.mu.Lock()
	source := c.source
	c.mu.Unlock()
	if source != nil {
		source.SetPermissions(perms)
	}
}

// SetFinishedNotify installs the callback invoked when the prefetch
// pipeline gives up without anything left to try.
func (c *Control) SetFinishedNotify(fn func(FinishedReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishedNotify = fn
}

// SetEnforcedIntentions turns on intent enforcement (spec.md §4.I:
// "enforcement only runs when with_enforced_intentions is set on the
// plug").
func (c *Control) SetEnforcedIntentions(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withEnforcedIntentions = on
}

// Unplug cancels all in-flight crawl operations, drops resume state,
// and clears the two bookmarks that only ever describe in-flight work
// (PREFETCH_CURSOR, SKIP_CURSOR). If complete is true it also
// disassociates the audio source and the finished-notification
// callback, matching spec.md §4.I's plug/unplug contract.
func (c *Control) Unplug(complete bool) {
	c.mu.Lock()
	handle := c.crawler
	source := c.source
	c.mu.Unlock()

	if handle != nil {
		handle.Unplug()
		handle.ClearBookmark(crawler.BookmarkPrefetchCursor)
		handle.ClearBookmark(crawler.BookmarkSkipCursor)
	}
	if c.skipper != nil {
		c.skipper.Abort()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetchFind = nil
	c.prefetchURIs = nil
	if source != nil {
		source.ResumeData = nil
	}
	if complete {
		c.source = nil
		c.finishedNotify = nil
	}
}

// isActiveControllerLocked reports whether this Control's plugged
// source is still the one selected, per the last
// SourceSelectedNotification seen. Callers must hold c.mu.
func (c *Control) isActiveControllerLocked() bool {
	return c.source != nil && c.source.Name == c.activeSourceName
}

// SourceSelectedNotification is called whenever any audio source
// becomes the one actually feeding the player. If it names a source
// other than the one plugged here, this Control's source is stopped
// and deselected and subsequent commands are rejected as "not active
// controller" (spec.md §8 "Audio-source hand-over").
func (c *Control) SourceSelectedNotification(name string) {
	c.mu.Lock()
	c.activeSourceName = name
	source := c.source
	force := c.forceTransportLocked()
	c.mu.Unlock()

	if source == nil {
		return
	}
	if source.Name == name {
		source.SelectedNotification()
		return
	}
	if source.State() == audiosource.Selected && force != nil {
		force.Stop(context.Background(), "deselected")
	}
	source.DeselectedNotification()
}

func (c *Control) transportLocked() *transport.Proxy { return c.primary }

func (c *Control) forceTransportLocked() *transport.Proxy {
	if c.force != nil {
		return c.force
	}
	return c.primary
}
