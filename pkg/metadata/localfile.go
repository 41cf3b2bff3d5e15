package metadata

import (
	"os"

	"github.com/dhowden/tag"

	"github.com/soundboard/playerctld/internal/corelog"
)

// FromLocalFile reads embedded ID3v1/ID3v2/FLAC/MP4 tags from a local
// file path and returns a Set containing whatever fields it found.
// This is the best-effort enrichment SPEC_FULL.md §3.1 describes: it
// is only ever merged with MergeMissing, never allowed to overwrite
// metadata the crawler already supplied, and a failure to read or
// parse the file returns an empty Set rather than an error — queuing
// a local file must never depend on it having readable tags.
func FromLocalFile(path string) *Set {
	out := New()

	f, err := os.Open(path)
	if err != nil {
		corelog.For("metadata").Debug().Err(err).Str("path", path).
			Msg("local file enrichment: could not open file")
		return out
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		corelog.For("metadata").Debug().Err(err).Str("path", path).
			Msg("local file enrichment: could not read tags")
		return out
	}

	if v := m.Artist(); v != "" {
		out.Add(Artist, v)
	}
	if v := m.Album(); v != "" {
		out.Add(Album, v)
	}
	if v := m.Title(); v != "" {
		out.Add(Title, v)
	}
	if v := string(m.Format()); v != "" {
		out.Add(Codec, v)
	}

	return out
}
