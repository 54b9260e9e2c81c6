package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/advisor"
	"github.com/web3guy0/pyrabot/ledger"
	"github.com/web3guy0/pyrabot/monitor"
	"github.com/web3guy0/pyrabot/risk"
	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - The position lifecycle loop
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every tick, per instrument, strictly in this order:
//
//   1. Refresh the open position at the latest price
//   2. Exit checks: stop → target → erosion cap → momentum failure
//      (first hit wins, exactly one exit reason)
//   3. Pyramid checks: L1 then L2, each behind advisory validation
//   4. Entry path: cache/budget → validation → gate → sizing → open
//
// Instruments are processed sequentially within a tick. Cancellation is
// honored between ticks.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketData is the feed surface the engine consumes.
type MarketData interface {
	Price(symbol string) (decimal.Decimal, bool)
	Ticker(symbol string) (types.Ticker, bool)
	Snapshot(symbol string) (types.IndicatorSnapshot, bool)
	Ready(symbol string) bool
}

// Notifier pushes trade events to an external channel. All methods are
// best effort.
type Notifier interface {
	NotifyTrade(instrument, event, details string)
	NotifyAlert(instrument, message string)
}

// SnapshotStore persists periodic risk snapshots.
type SnapshotStore interface {
	SaveRiskSnapshot(balance, openRisk decimal.Decimal, openCount int) error
}

// Config carries the engine tunables.
type Config struct {
	Instruments         []string
	ReferenceInstrument string
	TickInterval        time.Duration

	TargetPct float64 // profit target, % above entry
	StopPct   float64 // stop distance, % below entry

	// Pyramid adds are sized as a fraction of the initial volume.
	PyramidFraction float64

	InitialBalance decimal.Decimal
}

// DefaultConfig mirrors the live defaults.
func DefaultConfig() Config {
	return Config{
		ReferenceInstrument: "BTCUSDT",
		TickInterval:        15 * time.Second,
		TargetPct:           10.0,
		StopPct:             5.0,
		PyramidFraction:     0.5,
		InitialBalance:      decimal.NewFromInt(10000),
	}
}

// Engine drives the lifecycle loop.
type Engine struct {
	cfg Config

	data      MarketData
	ledger    *ledger.Ledger
	gate      *risk.Gate
	sizer     *risk.Sizer
	detector  *risk.Detector
	validator advisor.Validator
	cache     *advisor.Cache
	budget    *advisor.Budget
	feed      *monitor.Feed
	notifier  Notifier
	snapshots SnapshotStore

	// balance is written by the tick loop and read by monitoring
	// surfaces on their own goroutines.
	balanceMu sync.RWMutex
	balance   decimal.Decimal

	// Last health status per instrument, so erosion alerts fire on the
	// transition rather than every tick.
	lastHealth map[string]types.HealthStatus

	lastSnapshot time.Time
}

// Deps bundles the engine's collaborators. Notifier and Snapshots may be
// nil.
type Deps struct {
	Data      MarketData
	Ledger    *ledger.Ledger
	Gate      *risk.Gate
	Sizer     *risk.Sizer
	Detector  *risk.Detector
	Validator advisor.Validator
	Cache     *advisor.Cache
	Budget    *advisor.Budget
	Feed      *monitor.Feed
	Notifier  Notifier
	Snapshots SnapshotStore
}

// New creates the engine.
func New(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:        cfg,
		data:       deps.Data,
		ledger:     deps.Ledger,
		gate:       deps.Gate,
		sizer:      deps.Sizer,
		detector:   deps.Detector,
		validator:  deps.Validator,
		cache:      deps.Cache,
		budget:     deps.Budget,
		feed:       deps.Feed,
		notifier:   deps.Notifier,
		snapshots:  deps.Snapshots,
		balance:    cfg.InitialBalance,
		lastHealth: make(map[string]types.HealthStatus),
	}
}

// Balance returns the current account balance.
func (e *Engine) Balance() decimal.Decimal {
	e.balanceMu.RLock()
	defer e.balanceMu.RUnlock()
	return e.balance
}

func (e *Engine) addBalance(delta decimal.Decimal) decimal.Decimal {
	e.balanceMu.Lock()
	defer e.balanceMu.Unlock()
	e.balance = e.balance.Add(delta)
	return e.balance
}

// SetNotifier wires the notifier after construction. The notifier
// usually needs the engine for balance reads, so it comes second.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Run ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Strs("instruments", e.cfg.Instruments).
		Dur("interval", e.cfg.TickInterval).
		Msg("🚀 Engine started")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one full pass over every instrument.
func (e *Engine) Tick() {
	for _, instrument := range e.cfg.Instruments {
		e.process(instrument)
	}
	e.maybeSnapshot()
}

func (e *Engine) process(instrument string) {
	price, ok := e.data.Price(instrument)
	if !ok || price.IsZero() {
		return
	}

	e.ledger.UpdatePosition(instrument, price)

	if pos, open := e.ledger.GetPosition(instrument); open {
		if e.checkExits(instrument, pos, price) {
			return
		}
		e.checkErosionAlert(instrument)
		e.checkPyramids(instrument, pos, price)
		return
	}

	e.tryEnter(instrument, price)
}

// checkExits runs the exit checks in priority order. Returns true when
// the position was closed.
func (e *Engine) checkExits(instrument string, pos ledger.Position, price decimal.Decimal) bool {
	if e.ledger.CheckStopLoss(instrument, price) {
		e.close(instrument, price, types.ExitStopLoss)
		return true
	}
	if e.ledger.CheckProfitTarget(instrument, price) {
		e.close(instrument, price, types.ExitProfitTarget)
		return true
	}
	if e.ledger.CheckErosionCap(instrument) {
		e.close(instrument, price, types.ExitErosionCap)
		return true
	}

	snap, ok := e.data.Snapshot(instrument)
	if !ok {
		return false
	}
	res := e.detector.Check(instrument, pos.ProfitPct, len(pos.Levels) > 0, price, snap)
	if res.Triggered {
		e.close(instrument, price, types.ExitMomentumFailure)
		return true
	}
	return false
}

func (e *Engine) close(instrument string, price decimal.Decimal, reason types.ExitReason) {
	closed, err := e.ledger.ClosePosition(instrument, price, reason)
	if err != nil {
		log.Error().Err(err).Str("instrument", instrument).Msg("Close failed")
		return
	}

	balance := e.addBalance(closed.Profit)
	delete(e.lastHealth, instrument)

	details := fmt.Sprintf("%s @ %s, P&L %s (%.2f%%)",
		reason, price.StringFixed(2), closed.Profit.StringFixed(2), closed.ProfitPct)
	e.feed.Post(instrument, types.ActionExit, details)
	if e.notifier != nil {
		e.notifier.NotifyTrade(instrument, "EXIT", details)
	}

	if e.snapshots != nil {
		if err := e.snapshots.SaveRiskSnapshot(balance, e.ledger.OpenRisk(), len(e.ledger.OpenPositions())); err != nil {
			log.Error().Err(err).Msg("Failed to save risk snapshot")
		}
	}
}

// checkErosionAlert posts an alert when a position first crosses into
// ALERT health.
func (e *Engine) checkErosionAlert(instrument string) {
	health, ok := e.ledger.Health(instrument)
	if !ok {
		return
	}
	prev := e.lastHealth[instrument]
	e.lastHealth[instrument] = health.Status

	if health.Status == types.HealthAlert && prev != types.HealthAlert {
		details := fmt.Sprintf("erosion at %.1f%% of peak profit", health.ErosionPct)
		e.feed.Post(instrument, types.ActionErosionAlert, details)
		if e.notifier != nil {
			e.notifier.NotifyAlert(instrument, details)
		}
	}
}

// checkPyramids tries L1 then L2. Each level needs the ledger trigger,
// an advisory approval, and an in-order add.
func (e *Engine) checkPyramids(instrument string, pos ledger.Position, price decimal.Decimal) {
	level := 0
	if e.ledger.IsReadyForL1(instrument) {
		level = 1
	} else if e.ledger.IsReadyForL2(instrument) {
		level = 2
	}
	if level == 0 {
		return
	}

	snap, ok := e.data.Snapshot(instrument)
	if !ok {
		return
	}

	decision := e.validator.ValidatePyramid(instrument, level, pos.ProfitPct, snap)
	if !decision.ShouldAdd {
		log.Debug().
			Str("instrument", instrument).
			Int("level", level).
			Float64("confidence", decision.Confidence).
			Msg("Pyramid add declined by validator")
		return
	}

	volume := pos.InitialVolume.Mul(decimal.NewFromFloat(e.cfg.PyramidFraction))
	if err := e.ledger.AddPyramidLevel(instrument, level, price, volume, decision.Confidence); err != nil {
		return
	}

	details := fmt.Sprintf("L%d @ %s, volume %s", level, price.StringFixed(2), volume.String())
	e.feed.Post(instrument, types.ActionPyramid, details)
	if e.notifier != nil {
		e.notifier.NotifyTrade(instrument, "PYRAMID", details)
	}
}

// tryEnter runs the full entry path for an instrument with no open
// position.
func (e *Engine) tryEnter(instrument string, price decimal.Decimal) {
	if !e.data.Ready(instrument) {
		return
	}
	snap, ok := e.data.Snapshot(instrument)
	if !ok {
		return
	}

	spreadPct := 0.0
	if t, ok := e.data.Ticker(instrument); ok {
		spreadPct = t.SpreadPct()
	}

	refMomentum := snap.Momentum1h
	if instrument != e.cfg.ReferenceInstrument {
		if refSnap, ok := e.data.Snapshot(e.cfg.ReferenceInstrument); ok {
			refMomentum = refSnap.Momentum1h
		}
	}

	decision, ok := e.validate(instrument, price, snap)
	if !ok || decision.Decision != types.DecisionEnter {
		return
	}

	result := e.gate.Evaluate(risk.Candidate{
		Instrument:    instrument,
		Price:         price,
		Snapshot:      snap,
		SpreadPct:     spreadPct,
		TargetPct:     e.cfg.TargetPct,
		StopPct:       e.cfg.StopPct,
		RefMomentum1h: refMomentum,
		Confidence:    decision.Confidence,
	})
	if !result.Pass {
		return
	}

	stake, err := e.sizer.Size(e.Balance(), decision.Confidence, price, e.cfg.StopPct/100,
		e.trailingPerformance(), e.ledger.OpenRisk())
	if err != nil {
		if err != risk.ErrExposureExceeded {
			log.Error().Err(err).Str("instrument", instrument).Msg("Sizing failed")
		}
		return
	}

	stop := price.Mul(decimal.NewFromFloat(1 - e.cfg.StopPct/100))
	target := price.Mul(decimal.NewFromFloat(1 + e.cfg.TargetPct/100))

	err = e.ledger.AddPosition(instrument, price, stake.Asset, stop, target, ledger.EntryMetadata{
		Regime:        risk.ClassifyRegime(snap.ADX),
		TrendStrength: snap.ADX,
		Reasoning:     decision.Reasoning,
	})
	if err != nil {
		return
	}

	details := fmt.Sprintf("@ %s, stake %s, risk %.1f%%, confidence %.0f",
		price.StringFixed(2), stake.Currency.StringFixed(2), stake.RiskFraction*100, decision.Confidence)
	e.feed.Post(instrument, types.ActionEntry, details)
	if e.notifier != nil {
		e.notifier.NotifyTrade(instrument, "ENTRY", details)
	}
}

// validate resolves the advisory decision through the cache and call
// budget. A cache hit spends nothing; a miss needs budget headroom.
func (e *Engine) validate(instrument string, price decimal.Decimal, snap types.IndicatorSnapshot) (types.ValidationDecision, bool) {
	key := advisor.Fingerprint(instrument, price, snap)
	if cached, hit := e.cache.Get(key); hit {
		return cached, true
	}

	if e.budget != nil && !e.budget.Spend() {
		log.Debug().Str("instrument", instrument).Msg("Validation budget exhausted, skipping entry")
		return types.ValidationDecision{}, false
	}

	decision := e.validator.Validate(instrument, price, snap)
	e.cache.Put(key, decision)
	return decision, true
}

// trailingPerformance maps closed history onto the sizer's input.
func (e *Engine) trailingPerformance() risk.TrailingPerformance {
	stats := e.ledger.GetPerformanceStats()
	return risk.TrailingPerformance{
		Trades:     stats.TotalTrades,
		WinRate:    stats.WinRate,
		AvgWinPct:  stats.AvgWinPct,
		AvgLossPct: stats.AvgLossPct,
	}
}

// maybeSnapshot persists a risk snapshot at most hourly.
func (e *Engine) maybeSnapshot() {
	if e.snapshots == nil || time.Since(e.lastSnapshot) < time.Hour {
		return
	}
	e.lastSnapshot = time.Now()
	if err := e.snapshots.SaveRiskSnapshot(e.Balance(), e.ledger.OpenRisk(), len(e.ledger.OpenPositions())); err != nil {
		log.Error().Err(err).Msg("Failed to save risk snapshot")
	}
}
