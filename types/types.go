package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// Regime classifies market trendiness from the ADX reading.
type Regime string

const (
	RegimeChoppy   Regime = "CHOPPY"
	RegimeWeak     Regime = "WEAK"
	RegimeModerate Regime = "MODERATE"
	RegimeStrong   Regime = "STRONG"
)

// MACD holds the three MACD series values at a single point in time.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// IndicatorSnapshot is a pre-computed, read-only view of an instrument's
// technicals. Oscillator readings are plain floats; price-denominated
// fields stay decimal.
type IndicatorSnapshot struct {
	RSI         float64
	MACD        MACD
	ADX         float64
	VolumeRatio float64 // last volume / rolling average volume
	Momentum1h  float64 // % change over the last hour
	Momentum4h  float64 // % change over the last 4 hours
	RecentHigh  decimal.Decimal
	RecentLow   decimal.Decimal
	LongEMA     decimal.Decimal
}

// Ticker is the latest quote for an instrument.
type Ticker struct {
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Price  decimal.Decimal
	Volume decimal.Decimal
	Spread decimal.Decimal
}

// SpreadPct returns the spread normalized by price, in percent.
func (t Ticker) SpreadPct() float64 {
	if t.Price.IsZero() {
		return 0
	}
	return t.Spread.Div(t.Price).InexactFloat64() * 100
}

// Validation decisions produced by the advisory collaborator. Only the
// decision/confidence fields drive the risk core; reasoning is kept for
// the audit trail.

const (
	DecisionEnter = "ENTER"
	DecisionHold  = "HOLD"
)

type ValidationDecision struct {
	Decision   string  // ENTER or HOLD
	Confidence float64 // 0-100
	Reasoning  []string
}

type PyramidValidationDecision struct {
	ShouldAdd  bool
	Level      int
	Confidence float64
	Reasoning  []string
}

// RiskFilterResult is the outcome of one entry-pipeline evaluation.
// Stage is the 1-based index of the failing stage, 0 on pass.
type RiskFilterResult struct {
	Pass   bool
	Reason string
	Stage  int
}

// HealthStatus grades an open position for monitoring surfaces.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "HEALTHY"
	HealthCaution HealthStatus = "CAUTION"
	HealthRisk    HealthStatus = "RISK"
	HealthAlert   HealthStatus = "ALERT"
)

// PositionHealth summarizes how much of the erosion budget a position
// has burned and how long it has been held.
type PositionHealth struct {
	ErosionPct      float64 // % of peak profit given back
	HoldTimeMinutes float64
	Status          HealthStatus
}

// FeedAction tags an activity feed entry.
type FeedAction string

const (
	ActionEntry        FeedAction = "ENTRY"
	ActionPyramid      FeedAction = "PYRAMID"
	ActionExit         FeedAction = "EXIT"
	ActionErosionAlert FeedAction = "EROSION_ALERT"
)

// ActivityFeedEntry is one row of the monitoring feed.
type ActivityFeedEntry struct {
	Timestamp  time.Time
	Instrument string
	Action     FeedAction
	Details    string
}

// ExitReason records why a position was closed. Exactly one is set.
type ExitReason string

const (
	ExitStopLoss        ExitReason = "STOP_LOSS"
	ExitProfitTarget    ExitReason = "PROFIT_TARGET"
	ExitErosionCap      ExitReason = "EROSION_CAP"
	ExitMomentumFailure ExitReason = "MOMENTUM_FAILURE"
)
