// Package nullcrawler is a FindNextBackend/GetURIsBackend that never
// finds anything. It lets cmd/playerctld run standalone, with
// playback driven entirely by direct play()/push() calls rather than
// list traversal, without requiring the (out of scope) list crawler
// this module's contract describes.
package nullcrawler

import (
	"context"

	"github.com/soundboard/playerctld/pkg/crawler"
)

// Backend implements both crawler.FindNextBackend and
// crawler.GetURIsBackend by always reporting nothing found.
type Backend struct{}

// New returns a Backend.
func New() *Backend { return &Backend{} }

func (*Backend) FindNext(ctx context.Context, req crawler.FindNextRequest) (crawler.FindNextResult, error) {
	state := crawler.PositionReachedEndOfList
	if req.Direction == crawler.DirectionBackward {
		state = crawler.PositionReachedStartOfList
	}
	return crawler.FindNextResult{PositionalState: state}, nil
}

func (*Backend) GetURIs(ctx context.Context, req crawler.GetURIsRequest) (crawler.GetURIsResult, error) {
	return crawler.GetURIsResult{HasNoURIs: true}, nil
}
