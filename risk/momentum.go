package risk

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MOMENTUM FAILURE DETECTOR - Early exit before stop/target/erosion fire
// ═══════════════════════════════════════════════════════════════════════════════
//
// Three independent weakness signals; exit when enough of them agree.
// Only consulted once a position is already profitable. Pyramided
// positions get slower thresholds: adds mean the trend was confirmed,
// so a single soft reading shouldn't shake us out.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MomentumThresholds is one set of signal cutoffs.
type MomentumThresholds struct {
	MomentumFloor float64 // 1h momentum below this = price-action failure
	VolumeFloor   float64 // volume ratio below this = exhaustion
	HTFWeakening  float64 // 4h momentum below this = higher-timeframe breakdown
}

// MomentumConfig carries the detector tunables.
type MomentumConfig struct {
	Enabled         bool
	MinProfitPct    float64 // never trigger below this profit %
	RequiredSignals int     // how many of the three must agree
	NearPeakRatio   float64 // price/recentHigh ratio counting as "at the peak"

	Fast MomentumThresholds // no pyramid levels active
	Slow MomentumThresholds // at least one pyramid level active
}

// DefaultMomentumConfig mirrors the live defaults.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		Enabled:         true,
		MinProfitPct:    1.0,
		RequiredSignals: 2,
		NearPeakRatio:   0.985,
		Fast: MomentumThresholds{
			MomentumFloor: 0.1,
			VolumeFloor:   0.8,
			HTFWeakening:  -0.5,
		},
		Slow: MomentumThresholds{
			MomentumFloor: -0.2,
			VolumeFloor:   0.6,
			HTFWeakening:  -1.0,
		},
	}
}

// FailureResult reports each signal and the reasoning trail for audit.
type FailureResult struct {
	Triggered bool

	PriceAction      bool
	VolumeExhaustion bool
	HTFBreakdown     bool

	SignalCount int
	Reasons     []string
}

// Detector evaluates momentum failure for profitable positions.
type Detector struct {
	cfg MomentumConfig
}

// NewDetector creates a momentum failure detector.
func NewDetector(cfg MomentumConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Check evaluates the three signals. profitPct is the position's current
// profit percentage; pyramided selects the slower threshold set.
func (d *Detector) Check(instrument string, profitPct float64, pyramided bool, price decimal.Decimal, snap types.IndicatorSnapshot) FailureResult {
	res := FailureResult{}

	if !d.cfg.Enabled {
		return res
	}
	if profitPct < d.cfg.MinProfitPct {
		return res
	}

	thr := d.cfg.Fast
	horizon := "fast"
	if pyramided {
		thr = d.cfg.Slow
		horizon = "slow"
	}

	// Signal 1 — price-action failure: stalling at the highs, or momentum
	// rolling over outright.
	nearPeak := false
	if snap.RecentHigh.IsPositive() {
		nearPeak = price.GreaterThanOrEqual(snap.RecentHigh.Mul(decimal.NewFromFloat(d.cfg.NearPeakRatio)))
	}
	momentumFailed := snap.Momentum1h < thr.MomentumFloor
	if nearPeak && momentumFailed {
		res.PriceAction = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("stalling at peak: 1h momentum %.2f%% below %.2f%%", snap.Momentum1h, thr.MomentumFloor))
	} else if momentumFailed {
		res.PriceAction = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("momentum reversal: 1h %.2f%% below %.2f%%", snap.Momentum1h, thr.MomentumFloor))
	}

	// Signal 2 — volume exhaustion.
	if snap.VolumeRatio < thr.VolumeFloor {
		res.VolumeExhaustion = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("volume exhaustion: ratio %.2f below %.2f", snap.VolumeRatio, thr.VolumeFloor))
	}

	// Signal 3 — higher-timeframe breakdown.
	if snap.Momentum4h < thr.HTFWeakening {
		res.HTFBreakdown = true
		res.Reasons = append(res.Reasons, fmt.Sprintf("4h weakening: %.2f%% below %.2f%%", snap.Momentum4h, thr.HTFWeakening))
	} else if snap.LongEMA.IsPositive() && price.LessThan(snap.LongEMA) {
		res.HTFBreakdown = true
		res.Reasons = append(res.Reasons, "price below long EMA")
	}

	for _, sig := range []bool{res.PriceAction, res.VolumeExhaustion, res.HTFBreakdown} {
		if sig {
			res.SignalCount++
		}
	}
	res.Triggered = res.SignalCount >= d.cfg.RequiredSignals

	if res.Triggered {
		log.Info().
			Str("instrument", instrument).
			Str("horizon", horizon).
			Int("signals", res.SignalCount).
			Strs("reasons", res.Reasons).
			Msg("⚠️ Momentum failure detected")
	}

	return res
}
