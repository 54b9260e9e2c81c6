package advisor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CALL BUDGET - Caps external validation calls per period
// ═══════════════════════════════════════════════════════════════════════════════

// Budget rations validation calls over a rolling period. The window
// resets lazily on access; no background timer.
type Budget struct {
	mu sync.Mutex

	max    int
	period time.Duration

	used        int
	windowStart time.Time
}

// NewBudget creates a budget of max calls per period.
func NewBudget(max int, period time.Duration) *Budget {
	return &Budget{
		max:         max,
		period:      period,
		windowStart: time.Now(),
	}
}

// Allow reports whether at least one call remains in the current window.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeReset()
	return b.used < b.max
}

// Spend consumes one call. Returns false when the window is exhausted.
func (b *Budget) Spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeReset()
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Remaining returns calls left in the window.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeReset()
	return b.max - b.used
}

func (b *Budget) maybeReset() {
	if time.Since(b.windowStart) >= b.period {
		if b.used > 0 {
			log.Debug().Int("used", b.used).Int("max", b.max).Msg("Validation budget window reset")
		}
		b.used = 0
		b.windowStart = time.Now()
	}
}
