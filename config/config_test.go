package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptLevelBits(t *testing.T) {
	l := OptLevel(0x101)
	require.True(t, l.Enabled())
	require.True(t, l.DumpEnabled())
	require.True(t, l.SimpleDump())
	require.False(t, l.DetailedDump())
	require.Equal(t, 1, l.Level())

	require.False(t, OptDisabled.Enabled())
}

func TestTablesAtATimeFor(t *testing.T) {
	c := Default()
	require.Equal(t, 10, c.TablesAtATimeFor(10))
	require.Equal(t, 4, c.TablesAtATimeFor(25))
	require.Equal(t, 4, c.TablesAtATimeFor(30))
	require.Equal(t, 3, c.TablesAtATimeFor(37))
	require.Equal(t, 2, c.TablesAtATimeFor(38))
	require.Equal(t, 2, c.TablesAtATimeFor(100))
}

func TestApplyOverlay(t *testing.T) {
	c := Default()
	err := c.ApplyOverlay(map[string]interface{}{
		"opt_level":          "2",
		"merge_join_enabled": "false",
	})
	require.NoError(t, err)
	require.Equal(t, OptLevel(2), c.OptLevel)
	require.False(t, c.MergeJoinEnabled)
}
