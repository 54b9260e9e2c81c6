package advisor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DECISION CACHE - Reuse validation answers for near-identical setups
// ═══════════════════════════════════════════════════════════════════════════════
//
// Keyed by a coarse fingerprint: price and indicator readings rounded
// into buckets, so small wiggles hit the same entry. Expired entries
// are evicted lazily on read.
//
// ═══════════════════════════════════════════════════════════════════════════════

type cacheEntry struct {
	decision  types.ValidationDecision
	expiresAt time.Time
}

// Cache is an expiring fingerprint → decision store.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Fingerprint buckets the inputs coarsely: price to 0.5% steps, RSI to
// 5-point steps, momentum to 0.25% steps, volume ratio to 0.2 steps.
func Fingerprint(instrument string, price decimal.Decimal, snap types.IndicatorSnapshot) string {
	p := price.InexactFloat64()
	priceBucket := 0.0
	if p > 0 {
		priceBucket = math.Round(math.Log(p)/0.005) * 0.005
	}
	return fmt.Sprintf("%s|%.3f|%.0f|%.2f|%.2f|%.1f",
		instrument,
		priceBucket,
		math.Round(snap.RSI/5)*5,
		math.Round(snap.Momentum1h/0.25)*0.25,
		math.Round(snap.Momentum4h/0.25)*0.25,
		math.Round(snap.VolumeRatio/0.2)*0.2,
	)
}

// Get returns a live decision for the key. Expired entries are removed
// on the way out.
func (c *Cache) Get(key string) (types.ValidationDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return types.ValidationDecision{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return types.ValidationDecision{}, false
	}
	return e.decision, true
}

// Put stores a decision under the key.
func (c *Cache) Put(key string, d types.ValidationDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{decision: d, expiresAt: time.Now().Add(c.ttl)}
}

// Len reports the current entry count, counting expired stragglers that
// have not been read yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
