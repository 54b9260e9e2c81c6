package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LEDGER - Single source of truth for open positions and closed history
// ═══════════════════════════════════════════════════════════════════════════════
//
// One entry per instrument, each with its own mutex: mutations for the
// same instrument never interleave, mutations across instruments don't
// contend. At most one open position per instrument.
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	ErrPositionExists   = errors.New("position already open for instrument")
	ErrNoPosition       = errors.New("no open position for instrument")
	ErrDuplicateLevel   = errors.New("pyramid level already active")
	ErrLevelOutOfOrder  = errors.New("pyramid level added out of order")
	ErrLevelCapExceeded = errors.New("pyramid level cap exceeded")
)

// HistoryStore persists closed positions. Failures are best-effort: the
// in-memory close always wins.
type HistoryStore interface {
	SaveClosedPosition(cp ClosedPosition) error
}

// Config carries the ledger's tunables.
type Config struct {
	ErosionCaps map[types.Regime]float64 // fraction of peak profit per regime
	L1TriggerPct float64                 // profit fraction unlocking level 1
	L2TriggerPct float64                 // profit fraction unlocking level 2
}

// DefaultConfig mirrors the live defaults.
func DefaultConfig() Config {
	return Config{
		ErosionCaps: map[types.Regime]float64{
			types.RegimeChoppy:   0.20,
			types.RegimeWeak:     0.25,
			types.RegimeModerate: 0.30,
			types.RegimeStrong:   0.40,
		},
		L1TriggerPct: 0.045,
		L2TriggerPct: 0.09,
	}
}

type entry struct {
	mu  sync.Mutex
	pos *Position
}

// Ledger owns every position's lifecycle.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry

	histMu  sync.RWMutex
	history []ClosedPosition // chronological, append-only

	store HistoryStore // optional
	cfg   Config
}

// New creates a ledger. store may be nil for a memory-only ledger.
func New(cfg Config, store HistoryStore) *Ledger {
	if cfg.ErosionCaps == nil {
		cfg = DefaultConfig()
	}
	return &Ledger{
		entries: make(map[string]*entry),
		store:   store,
		cfg:     cfg,
	}
}

// LoadHistory seeds the closed history, e.g. from storage at startup.
func (l *Ledger) LoadHistory(history []ClosedPosition) {
	l.histMu.Lock()
	defer l.histMu.Unlock()
	l.history = append(l.history, history...)
}

// lookup returns the entry for an instrument, creating it if asked.
func (l *Ledger) lookup(instrument string, create bool) *entry {
	l.mu.RLock()
	e := l.entries[instrument]
	l.mu.RUnlock()
	if e != nil || !create {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e = l.entries[instrument]; e == nil {
		e = &entry{}
		l.entries[instrument] = e
	}
	return e
}

// AddPosition opens a position. A duplicate open is a logged no-op.
func (l *Ledger) AddPosition(instrument string, price, volume, stopLoss, target decimal.Decimal, meta EntryMetadata) error {
	e := l.lookup(instrument, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pos != nil {
		log.Warn().
			Str("instrument", instrument).
			Msg("⚠️ Position already open, ignoring add")
		return ErrPositionExists
	}

	cap, ok := l.cfg.ErosionCaps[meta.Regime]
	if !ok {
		cap = l.cfg.ErosionCaps[types.RegimeChoppy]
	}

	e.pos = &Position{
		Instrument:    instrument,
		EntryPrice:    price,
		InitialVolume: volume,
		EntryTime:     time.Now(),
		StopLoss:      stopLoss,
		ProfitTarget:  target,
		TotalVolume:   volume,
		CurrentProfit: decimal.Zero,
		PeakProfit:    decimal.Zero,
		ErosionCap:    cap,
		ErosionUsed:   decimal.Zero,
		Meta:          meta,
		Status:        StatusOpen,
	}

	log.Info().
		Str("instrument", instrument).
		Str("entry", price.StringFixed(2)).
		Str("volume", volume.String()).
		Str("stop", stopLoss.StringFixed(2)).
		Str("target", target.StringFixed(2)).
		Str("regime", string(meta.Regime)).
		Msg("✅ Position opened")

	return nil
}

// UpdatePosition recomputes profit, peak and erosion at the given price.
// No-op if the instrument has no open position.
func (l *Ledger) UpdatePosition(instrument string, price decimal.Decimal) {
	e := l.lookup(instrument, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == nil {
		return
	}
	e.pos.recompute(price)
}

// AddPyramidLevel appends a level. Duplicate, out-of-order and over-cap
// adds are rejected and leave the position untouched.
func (l *Ledger) AddPyramidLevel(instrument string, level int, price, volume decimal.Decimal, confidence float64) error {
	e := l.lookup(instrument, false)
	if e == nil {
		return ErrNoPosition
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.pos
	if pos == nil {
		return ErrNoPosition
	}

	if len(pos.Levels) >= maxPyramidLevels {
		log.Warn().Str("instrument", instrument).Int("level", level).Msg("⚠️ Pyramid level cap reached")
		return ErrLevelCapExceeded
	}
	for _, lvl := range pos.Levels {
		if lvl.Level == level {
			log.Warn().Str("instrument", instrument).Int("level", level).Msg("⚠️ Duplicate pyramid level")
			return ErrDuplicateLevel
		}
	}
	// Levels activate strictly in order: 1 then 2.
	if level != len(pos.Levels)+1 {
		log.Warn().Str("instrument", instrument).Int("level", level).Msg("⚠️ Pyramid level out of order")
		return ErrLevelOutOfOrder
	}

	trigger := l.cfg.L1TriggerPct
	if level == 2 {
		trigger = l.cfg.L2TriggerPct
	}

	pos.Levels = append(pos.Levels, PyramidLevel{
		Level:      level,
		EntryPrice: price,
		Volume:     volume,
		EntryTime:  time.Now(),
		TriggerPct: trigger,
		Confidence: confidence,
		Status:     StatusOpen,
	})
	pos.TotalVolume = pos.TotalVolume.Add(volume)
	pos.recompute(price)

	log.Info().
		Str("instrument", instrument).
		Int("level", level).
		Str("price", price.StringFixed(2)).
		Str("volume", volume.String()).
		Str("total_volume", pos.TotalVolume.String()).
		Msg("🔺 Pyramid level added")

	return nil
}

// CheckErosionCap reports whether the position has given back more than
// its regime cap, measured as a fraction of peak profit. Applies to every
// open position, pyramided or not.
func (l *Ledger) CheckErosionCap(instrument string) bool {
	e := l.lookup(instrument, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == nil {
		return false
	}
	return e.pos.erosionFraction() > e.pos.ErosionCap
}

// CheckStopLoss reports whether price has hit the stored stop.
func (l *Ledger) CheckStopLoss(instrument string, price decimal.Decimal) bool {
	e := l.lookup(instrument, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos != nil && price.LessThanOrEqual(e.pos.StopLoss)
}

// CheckProfitTarget reports whether price has hit the stored target.
func (l *Ledger) CheckProfitTarget(instrument string, price decimal.Decimal) bool {
	e := l.lookup(instrument, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos != nil && price.GreaterThanOrEqual(e.pos.ProfitTarget)
}

// IsReadyForL1 reports whether level 1 may be added: no levels active yet
// and profit at or past the L1 trigger.
func (l *Ledger) IsReadyForL1(instrument string) bool {
	e := l.lookup(instrument, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.pos
	if pos == nil {
		return false
	}
	return len(pos.Levels) == 0 && pos.ProfitPct/100 >= l.cfg.L1TriggerPct
}

// IsReadyForL2 reports whether level 2 may be added: exactly level 1
// active and profit at or past the L2 trigger.
func (l *Ledger) IsReadyForL2(instrument string) bool {
	e := l.lookup(instrument, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.pos
	if pos == nil {
		return false
	}
	return len(pos.Levels) == 1 && pos.ProfitPct/100 >= l.cfg.L2TriggerPct
}

// ClosePosition moves the position to history with exactly one exit
// reason. Final P&L is total-volume weighted, the same math as live
// updates. Persistence failure is reported but never rolls back the
// in-memory close.
func (l *Ledger) ClosePosition(instrument string, exitPrice decimal.Decimal, reason types.ExitReason) (ClosedPosition, error) {
	e := l.lookup(instrument, false)
	if e == nil {
		return ClosedPosition{}, ErrNoPosition
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.pos
	if pos == nil {
		return ClosedPosition{}, ErrNoPosition
	}

	pos.recompute(exitPrice)
	pos.Status = StatusClosed
	pos.ExitPrice = exitPrice
	pos.ExitTime = time.Now()
	pos.ExitReason = reason

	closed := ClosedPosition{
		Instrument:    pos.Instrument,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		InitialVolume: pos.InitialVolume,
		TotalVolume:   pos.TotalVolume,
		Levels:        len(pos.Levels),
		Profit:        pos.CurrentProfit,
		ProfitPct:     pos.ProfitPct,
		PeakProfit:    pos.PeakProfit,
		ErosionUsed:   pos.ErosionUsed,
		Regime:        pos.Meta.Regime,
		TrendStrength: pos.Meta.TrendStrength,
		ExitReason:    reason,
		EntryTime:     pos.EntryTime,
		ClosedAt:      pos.ExitTime,
	}

	e.pos = nil

	l.histMu.Lock()
	l.history = append(l.history, closed)
	l.histMu.Unlock()

	if l.store != nil {
		if err := l.store.SaveClosedPosition(closed); err != nil {
			log.Error().Err(err).
				Str("instrument", instrument).
				Msg("Failed to persist closed position, in-memory state remains authoritative")
		}
	}

	log.Info().
		Str("instrument", instrument).
		Str("exit", exitPrice.StringFixed(2)).
		Str("pnl", closed.Profit.StringFixed(2)).
		Str("reason", string(reason)).
		Msg("📊 Position closed")

	return closed, nil
}

// GetPosition returns a copy of the open position, if any.
func (l *Ledger) GetPosition(instrument string) (Position, bool) {
	e := l.lookup(instrument, false)
	if e == nil {
		return Position{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos == nil {
		return Position{}, false
	}
	return e.pos.snapshot(), true
}

// OpenPositions returns copies of every open position.
func (l *Ledger) OpenPositions() []Position {
	l.mu.RLock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]Position, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.pos != nil {
			out = append(out, e.pos.snapshot())
		}
		e.mu.Unlock()
	}
	return out
}

// OpenRisk sums risk-at-stake (|entry - stop| x total volume) across all
// open positions, for the sizer's concurrent-exposure guard.
func (l *Ledger) OpenRisk() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range l.OpenPositions() {
		total = total.Add(pos.EntryPrice.Sub(pos.StopLoss).Abs().Mul(pos.TotalVolume))
	}
	return total
}

// Health reports the monitoring view of an open position.
func (l *Ledger) Health(instrument string) (types.PositionHealth, bool) {
	e := l.lookup(instrument, false)
	if e == nil {
		return types.PositionHealth{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.pos
	if pos == nil {
		return types.PositionHealth{}, false
	}

	erosionPct := pos.erosionFraction() * 100
	health := types.PositionHealth{
		ErosionPct:      erosionPct,
		HoldTimeMinutes: time.Since(pos.EntryTime).Minutes(),
	}
	capPct := pos.ErosionCap * 100
	switch {
	case capPct > 0 && erosionPct >= capPct*0.75:
		health.Status = types.HealthAlert
	case capPct > 0 && erosionPct >= capPct*0.5:
		health.Status = types.HealthRisk
	case capPct > 0 && erosionPct >= capPct*0.25:
		health.Status = types.HealthCaution
	default:
		health.Status = types.HealthHealthy
	}
	return health, true
}

// History returns a copy of the closed-position history, oldest first.
func (l *Ledger) History() []ClosedPosition {
	l.histMu.RLock()
	defer l.histMu.RUnlock()
	out := make([]ClosedPosition, len(l.history))
	copy(out, l.history)
	return out
}

// String renders a one-line summary for logs.
func (l *Ledger) String() string {
	l.mu.RLock()
	open := 0
	for _, e := range l.entries {
		if e.pos != nil {
			open++
		}
	}
	l.mu.RUnlock()
	l.histMu.RLock()
	closed := len(l.history)
	l.histMu.RUnlock()
	return fmt.Sprintf("ledger{open=%d closed=%d}", open, closed)
}
