package risk

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENTRY GATE PIPELINE - Five ordered veto stages
// ═══════════════════════════════════════════════════════════════════════════════
//
// Candidate → 1.Health/Regime → 2.Drop Protection → 3.Entry Quality
//           → 4.External Validation → 5.Cost Floor → approved
//
// Evaluation stops at the first failing stage. Deterministic for
// identical inputs; the only side effect is a log line per rejection.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Candidate is one proposed entry. All inputs are already-fetched value
// objects; the pipeline does no I/O.
type Candidate struct {
	Instrument string
	Price      decimal.Decimal
	Snapshot   types.IndicatorSnapshot
	SpreadPct  float64 // normalized spread, %

	TargetPct float64 // proposed profit target, % of entry
	StopPct   float64 // stop distance, % of entry

	// 1h momentum of the reference instrument; dump protection for
	// everything that is not the reference itself.
	RefMomentum1h float64

	// Confidence handed over by the caller from the external validation
	// decision. The inference call itself happens upstream.
	Confidence float64
}

// BudgetChecker reports whether the external validation budget for the
// current period still has headroom.
type BudgetChecker interface {
	Allow() bool
}

// GateConfig carries every stage threshold.
type GateConfig struct {
	ReferenceInstrument string

	// Stage 1
	MinTrendStrength float64 // ADX floor, choppy-market veto

	// Stage 2
	DumpThreshold float64 // reference 1h momentum below this = market dump
	PanicVolumeMax float64 // volume ratio above this = panic spike
	MaxSpreadPct   float64 // normalized spread ceiling, %

	// Stage 3
	NearHighPct    float64 // veto entries within this % of the recent high
	RSIExtreme     float64
	MomentumFloor  float64 // 1h/4h momentum floor, %
	VolumeBreakout float64 // volume ratio confirming a breakout

	// Stage 4
	MinConfidence float64

	// Stage 5
	CostSafetyMultiplier float64
	MinRiskReward        float64
}

// DefaultGateConfig mirrors the live defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ReferenceInstrument:  "BTCUSDT",
		MinTrendStrength:     20,
		DumpThreshold:        -1.5,
		PanicVolumeMax:       3.0,
		MaxSpreadPct:         0.15,
		NearHighPct:          0.5,
		RSIExtreme:           85,
		MomentumFloor:        0.3,
		VolumeBreakout:       1.3,
		MinConfidence:        70,
		CostSafetyMultiplier: 1.5,
		MinRiskReward:        1.5,
	}
}

// Gate evaluates entry candidates against the ordered stages.
type Gate struct {
	cfg    GateConfig
	costs  CostModel
	budget BudgetChecker
}

// NewGate creates the pipeline. budget may be nil when no external
// validation budget applies.
func NewGate(cfg GateConfig, costs CostModel, budget BudgetChecker) *Gate {
	return &Gate{cfg: cfg, costs: costs, budget: budget}
}

// Evaluate runs the stages in order and stops at the first failure.
func (g *Gate) Evaluate(c Candidate) types.RiskFilterResult {
	checks := []struct {
		stage int
		run   func(Candidate) (bool, string)
	}{
		{1, g.checkHealthRegime},
		{2, g.checkDropProtection},
		{3, g.checkEntryQuality},
		{4, g.checkValidation},
		{5, g.checkCostFloor},
	}

	for _, chk := range checks {
		ok, reason := chk.run(c)
		if !ok {
			log.Debug().
				Str("instrument", c.Instrument).
				Int("stage", chk.stage).
				Str("reason", reason).
				Msg("🚫 Entry rejected")
			return types.RiskFilterResult{Pass: false, Reason: reason, Stage: chk.stage}
		}
	}

	log.Debug().
		Str("instrument", c.Instrument).
		Float64("confidence", c.Confidence).
		Msg("✅ Entry passed all gates")
	return types.RiskFilterResult{Pass: true}
}

// Stage 1 — Health/Regime: validation budget headroom and a tradeable trend.
func (g *Gate) checkHealthRegime(c Candidate) (bool, string) {
	if g.budget != nil && !g.budget.Allow() {
		return false, "validation call budget exhausted"
	}
	if c.Snapshot.ADX < g.cfg.MinTrendStrength {
		return false, fmt.Sprintf("choppy market: trend strength %.1f below %.1f", c.Snapshot.ADX, g.cfg.MinTrendStrength)
	}
	return true, ""
}

// Stage 2 — Drop Protection: market-wide dump, panic volume, wide spread.
func (g *Gate) checkDropProtection(c Candidate) (bool, string) {
	if c.Instrument != g.cfg.ReferenceInstrument && c.RefMomentum1h < g.cfg.DumpThreshold {
		return false, fmt.Sprintf("reference dumping: 1h momentum %.2f%% below %.2f%%", c.RefMomentum1h, g.cfg.DumpThreshold)
	}
	if c.Snapshot.VolumeRatio > g.cfg.PanicVolumeMax {
		return false, fmt.Sprintf("panic volume spike: ratio %.2f above %.2f", c.Snapshot.VolumeRatio, g.cfg.PanicVolumeMax)
	}
	if c.SpreadPct > g.cfg.MaxSpreadPct {
		return false, fmt.Sprintf("spread widening: %.3f%% above %.3f%%", c.SpreadPct, g.cfg.MaxSpreadPct)
	}
	return true, ""
}

// Stage 3 — Entry Quality: not chasing a top, and at least one momentum
// path confirming the move.
func (g *Gate) checkEntryQuality(c Candidate) (bool, string) {
	if c.Snapshot.RecentHigh.IsPositive() {
		nearHigh := c.Snapshot.RecentHigh.Mul(decimal.NewFromFloat(1 - g.cfg.NearHighPct/100))
		if c.Price.GreaterThanOrEqual(nearHigh) {
			return false, fmt.Sprintf("price within %.1f%% of recent high", g.cfg.NearHighPct)
		}
	}
	if c.Snapshot.RSI > g.cfg.RSIExtreme {
		return false, fmt.Sprintf("RSI %.1f beyond overbought extreme %.1f", c.Snapshot.RSI, g.cfg.RSIExtreme)
	}

	m1, m4 := c.Snapshot.Momentum1h, c.Snapshot.Momentum4h
	strongShort := m1 > g.cfg.MomentumFloor
	aligned := m1 > g.cfg.MomentumFloor && m4 > g.cfg.MomentumFloor
	breakout := c.Snapshot.VolumeRatio > g.cfg.VolumeBreakout && m1 > 0

	if !strongShort && !aligned && !breakout {
		return false, fmt.Sprintf("no momentum path: 1h %.2f%%, 4h %.2f%%, volume ratio %.2f", m1, m4, c.Snapshot.VolumeRatio)
	}
	return true, ""
}

// Stage 4 — External Validation: the confidence handed to us must clear
// the configured minimum.
func (g *Gate) checkValidation(c Candidate) (bool, string) {
	if c.Confidence < g.cfg.MinConfidence {
		return false, fmt.Sprintf("validation confidence %.0f below minimum %.0f", c.Confidence, g.cfg.MinConfidence)
	}
	return true, ""
}

// Stage 5 — Cost Floor: the target must clear costs with margin, keep an
// acceptable risk-reward, and leave a strictly positive edge.
func (g *Gate) checkCostFloor(c Candidate) (bool, string) {
	est := g.costs.Evaluate(c.SpreadPct, c.TargetPct, c.StopPct, g.cfg.CostSafetyMultiplier)

	if c.TargetPct < est.CostFloorPct {
		return false, fmt.Sprintf("target %.2f%% below cost floor %.2f%%", c.TargetPct, est.CostFloorPct)
	}
	if est.RiskReward < g.cfg.MinRiskReward {
		return false, fmt.Sprintf("risk-reward %.2f below minimum %.2f", est.RiskReward, g.cfg.MinRiskReward)
	}
	if est.NetEdgePct <= 0 {
		return false, fmt.Sprintf("no net edge: %.2f%% after %.2f%% costs", est.NetEdgePct, est.TotalCostPct)
	}
	return true, ""
}
