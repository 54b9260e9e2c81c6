package risk

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION SIZING - Dampened Kelly with confidence scaling
// ═══════════════════════════════════════════════════════════════════════════════
//
// riskFraction = clamp(dampedKelly x confidenceMultiplier, min, max)
// stake        = balance x riskFraction / stopLossPct
//
// Kelly comes from trailing win rate and average win/loss sizes, damped
// to a quarter to cut variance. No history falls back to a conservative
// fixed risk; nothing here can divide by zero.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrExposureExceeded rejects a stake that would push aggregate open
// risk past the configured share of balance.
var ErrExposureExceeded = errors.New("aggregate open risk limit exceeded")

// TrailingPerformance is the slice of history the sizer needs.
type TrailingPerformance struct {
	Trades     int
	WinRate    float64 // 0-1
	AvgWinPct  float64
	AvgLossPct float64 // positive magnitude
}

// SizerConfig carries the sizing tunables.
type SizerConfig struct {
	DefaultRisk    float64 // risk fraction with no trade history
	MinKelly       float64 // clamp floor for the raw Kelly fraction
	MaxKelly       float64 // clamp ceiling for the raw Kelly fraction
	KellyDamping   float64 // applied after the clamp
	MinConfidence  float64 // maps to the 0.5x multiplier
	MaxConfidence  float64 // maps to the 2.0x multiplier
	MinRiskPerTrade float64
	MaxRiskPerTrade float64
	MaxOpenRiskPct  float64 // aggregate open risk ceiling, fraction of balance
}

// DefaultSizerConfig mirrors the live defaults.
func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		DefaultRisk:     0.05,
		MinKelly:        0.01,
		MaxKelly:        0.10,
		KellyDamping:    0.25,
		MinConfidence:   70,
		MaxConfidence:   95,
		MinRiskPerTrade: 0.01,
		MaxRiskPerTrade: 0.10,
		MaxOpenRiskPct:  0.05,
	}
}

// Stake is the sizer's output.
type Stake struct {
	Currency     decimal.Decimal // stake in quote currency
	Asset        decimal.Decimal // stake divided by price
	RiskCurrency decimal.Decimal // currency lost if the stop is hit
	RiskFraction float64
}

// Sizer converts balance, confidence and trailing performance into a
// risk-adjusted stake.
type Sizer struct {
	cfg SizerConfig
}

// NewSizer creates a position sizer.
func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes the stake. openRisk is the aggregate risk-at-stake
// across currently open positions; stakes that would push it past the
// limit are rejected.
func (s *Sizer) Size(balance decimal.Decimal, confidence float64, price decimal.Decimal, stopLossPct float64, perf TrailingPerformance, openRisk decimal.Decimal) (Stake, error) {
	if stopLossPct <= 0 {
		return Stake{}, fmt.Errorf("invalid stop loss pct %.4f", stopLossPct)
	}
	if price.IsZero() || balance.IsZero() {
		return Stake{}, fmt.Errorf("invalid balance/price")
	}

	kelly := s.kellyFraction(perf)
	mult := s.confidenceMultiplier(confidence)
	risk := clamp(kelly*mult, s.cfg.MinRiskPerTrade, s.cfg.MaxRiskPerTrade)

	riskCurrency := balance.Mul(decimal.NewFromFloat(risk))
	stake := riskCurrency.Div(decimal.NewFromFloat(stopLossPct))
	asset := stake.Div(price)

	// Concurrent-exposure guard across all open positions.
	limit := balance.Mul(decimal.NewFromFloat(s.cfg.MaxOpenRiskPct))
	if openRisk.Add(riskCurrency).GreaterThan(limit) {
		log.Warn().
			Str("open_risk", openRisk.StringFixed(2)).
			Str("new_risk", riskCurrency.StringFixed(2)).
			Str("limit", limit.StringFixed(2)).
			Msg("🚫 Stake rejected by exposure guard")
		return Stake{}, ErrExposureExceeded
	}

	log.Debug().
		Float64("kelly", kelly).
		Float64("conf_mult", mult).
		Float64("risk_fraction", risk).
		Str("stake", stake.StringFixed(2)).
		Msg("Position sized")

	return Stake{
		Currency:     stake,
		Asset:        asset,
		RiskCurrency: riskCurrency,
		RiskFraction: risk,
	}, nil
}

// kellyFraction derives the dampened Kelly fraction from trailing
// performance. Kelly: f = W - (1-W)/R with R = avg win / avg loss.
func (s *Sizer) kellyFraction(perf TrailingPerformance) float64 {
	raw := s.cfg.DefaultRisk
	// No history, or no losing trades to size R with: keep the default.
	if perf.Trades > 0 && perf.AvgLossPct > 0 {
		r := perf.AvgWinPct / perf.AvgLossPct
		if r > 0 {
			raw = perf.WinRate - (1-perf.WinRate)/r
		}
	}
	raw = clamp(raw, s.cfg.MinKelly, s.cfg.MaxKelly)
	return raw * s.cfg.KellyDamping
}

// confidenceMultiplier maps validation confidence linearly from
// [minConfidence, maxConfidence] onto [0.5x, 2.0x].
func (s *Sizer) confidenceMultiplier(confidence float64) float64 {
	lo, hi := s.cfg.MinConfidence, s.cfg.MaxConfidence
	if hi <= lo {
		return 1.0
	}
	t := (confidence - lo) / (hi - lo)
	t = clamp(t, 0, 1)
	return 0.5 + t*1.5
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
