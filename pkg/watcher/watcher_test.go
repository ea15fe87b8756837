package watcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiffRemovedAndAdded(t *testing.T) {
	prev := []string{"https://A/", "https://B/"}
	updated := []string{"https://B/", "https://C/"}

	removed, added := diff(prev, updated)
	require.Equal(t, []string{"https://A/"}, removed)
	require.Equal(t, []string{"https://C/"}, added)
}

func TestDiffNoChange(t *testing.T) {
	prev := []string{"https://A/"}
	removed, added := diff(prev, []string{"https://A/"})
	require.Empty(t, removed)
	require.Empty(t, added)
}

func TestLiveListSnapshotIsACopy(t *testing.T) {
	l := &LiveList{}
	l.Replace([]string{"https://A/"})
	snap := l.Snapshot()
	snap[0] = "mutated"
	require.Equal(t, []string{"https://A/"}, l.Snapshot())
}
