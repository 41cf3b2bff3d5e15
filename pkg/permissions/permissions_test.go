package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsMaximallyPermissive(t *testing.T) {
	s := Default()
	require.True(t, s.CanPlay)
	require.True(t, s.CanPrefetchForGapless)
	require.Greater(t, s.MaxPrefetch, 0)
}

func TestNoneStillAllowsBarePlayback(t *testing.T) {
	s := None()
	require.True(t, s.CanPlay)
	require.False(t, s.CanSkipOnError)
	require.Equal(t, 0, s.MaxPrefetch)
}
