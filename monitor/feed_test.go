package monitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/pyrabot/types"
)

func TestFeedCapsEntries(t *testing.T) {
	f := NewFeed(5)

	for i := 0; i < 8; i++ {
		f.Post("BTCUSDT", types.ActionEntry, fmt.Sprintf("event %d", i))
	}

	assert.Equal(t, 5, f.Len())

	recent := f.Recent(0)
	require.Len(t, recent, 5)
	// Newest first; oldest surviving entry is event 3.
	assert.Equal(t, "event 7", recent[0].Details)
	assert.Equal(t, "event 3", recent[4].Details)
}

func TestFeedRecentLimit(t *testing.T) {
	f := NewFeed(10)
	f.Post("BTCUSDT", types.ActionEntry, "a")
	f.Post("ETHUSDT", types.ActionExit, "b")

	recent := f.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].Details)
	assert.Equal(t, types.ActionExit, recent[0].Action)

	// Asking for more than exists returns everything.
	assert.Len(t, f.Recent(99), 2)
}

func TestFeedDefaultCap(t *testing.T) {
	f := NewFeed(0)
	for i := 0; i < 150; i++ {
		f.Post("BTCUSDT", types.ActionPyramid, "x")
	}
	assert.Equal(t, 100, f.Len())
}
