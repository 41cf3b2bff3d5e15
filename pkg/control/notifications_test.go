package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundboard/playerctld/pkg/streamid"
)

func TestClassifyStopTable(t *testing.T) {
	ours := func(id streamid.ID) bool { return id != 0 && id < 100 }
	queued := func(id streamid.ID) bool { return id == 7 }

	const head streamid.ID = 5
	const foreign streamid.ID = 200

	cases := []struct {
		name     string
		head     streamid.ID
		notified streamid.ID
		want     StopClassification
	}{
		{"head set, notified is head", head, head, ClassificationOursAsExpected},
		{"head set, notified is ours but queued elsewhere", head, 7, ClassificationOursQueued},
		{"head set, notified is ours but unknown id", head, 9, ClassificationOursWrongID},
		{"head set, notified is foreign", head, foreign, ClassificationUnexpectedlyNotOurs},
		{"no head, notified empty", streamid.Invalid, streamid.Invalid, ClassificationEmptyAsExpected},
		{"no head, notified is foreign", streamid.Invalid, foreign, ClassificationNotOurs},
		{"no head, notified is ours", streamid.Invalid, 9, ClassificationUnexpectedlyOurs},
	}

	for _, tc := range cases {
		got := classifyStop(tc.head, tc.notified, ours, queued)
		require.Equal(t, tc.want, got, tc.name)
	}
}

func TestStopClassificationStringCoversEveryValue(t *testing.T) {
	values := []StopClassification{
		ClassificationOursAsExpected, ClassificationUnexpectedlyNotOurs, ClassificationOursWrongID,
		ClassificationOursQueued, ClassificationEmptyAsExpected, ClassificationNotOurs,
		ClassificationUnexpectedlyOurs, ClassificationInvalidID,
	}
	seen := make(map[string]bool)
	for _, v := range values {
		s := v.String()
		require.NotEmpty(t, s)
		require.False(t, seen[s], "duplicate String() rendering: %s", s)
		seen[s] = true
	}
}
