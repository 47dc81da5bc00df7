package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{"DISABLE_EVICTION"})

	t.Run("run if enabled", func(t *testing.T) {
		var runEviction bool
		f.IfSet(FlagDisableEviction, func() {
			runEviction = true
		})
		require.True(t, runEviction)

		var runStatus bool
		f.IfSet(FlagDisableStatusBroadcast, func() {
			runStatus = true
		})
		require.False(t, runStatus)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runEviction bool
		f.IfNotSet(FlagDisableEviction, func() {
			runEviction = true
		})
		require.False(t, runEviction)

		var runStatus bool
		f.IfNotSet(FlagDisableStatusBroadcast, func() {
			runStatus = true
		})
		require.True(t, runStatus)
	})

	t.Run("names are normalized", func(t *testing.T) {
		f := New([]string{" disable_eager_discovery ", ""})
		require.True(t, f.IsSet(FlagDisableEagerDiscovery))
		require.Len(t, f, 1)
	})

	t.Run("unknown flags are reported", func(t *testing.T) {
		f := New([]string{"DISABLE_EVICTION", "TURBO", "DISABLE_SESSION_STATE"})
		require.Equal(t, []string{"DISABLE_SESSION_STATE", "TURBO"}, f.Unknown())
	})

	t.Run("nil flags", func(t *testing.T) {
		var f FeatureFlag
		require.False(t, f.IsSet(FlagDisableEviction))
		require.Empty(t, f.Unknown())
	})
}
