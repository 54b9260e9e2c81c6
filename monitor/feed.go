package monitor

import (
	"sync"
	"time"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ACTIVITY FEED - Rolling record of entries, pyramids, exits and alerts
// ═══════════════════════════════════════════════════════════════════════════════

// Feed keeps the most recent N activity entries for monitoring surfaces.
type Feed struct {
	mu      sync.RWMutex
	cap     int
	entries []types.ActivityFeedEntry
}

// NewFeed creates a feed capped to max entries.
func NewFeed(max int) *Feed {
	if max <= 0 {
		max = 100
	}
	return &Feed{cap: max}
}

// Post appends an entry, dropping the oldest past the cap.
func (f *Feed) Post(instrument string, action types.FeedAction, details string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, types.ActivityFeedEntry{
		Timestamp:  time.Now(),
		Instrument: instrument,
		Action:     action,
		Details:    details,
	})
	if len(f.entries) > f.cap {
		f.entries = f.entries[len(f.entries)-f.cap:]
	}
}

// Recent returns up to n entries, newest first.
func (f *Feed) Recent(n int) []types.ActivityFeedEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n <= 0 || n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]types.ActivityFeedEntry, n)
	for i := 0; i < n; i++ {
		out[i] = f.entries[len(f.entries)-1-i]
	}
	return out
}

// Len reports the current entry count.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
