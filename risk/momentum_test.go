package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/pyrabot/types"
)

// healthySnapshot shows no weakness signal under the fast thresholds.
func healthySnapshot() types.IndicatorSnapshot {
	return types.IndicatorSnapshot{
		Momentum1h:  0.5,
		Momentum4h:  0.5,
		VolumeRatio: 1.2,
		RecentHigh:  decimal.NewFromInt(3100),
		LongEMA:     decimal.NewFromInt(2800),
	}
}

func TestDetectorDisabled(t *testing.T) {
	cfg := DefaultMomentumConfig()
	cfg.Enabled = false
	d := NewDetector(cfg)

	snap := healthySnapshot()
	snap.Momentum1h = -5
	snap.Momentum4h = -5
	snap.VolumeRatio = 0.1

	res := d.Check("ETHUSDT", 5.0, false, decimal.NewFromInt(3000), snap)
	assert.False(t, res.Triggered)
	assert.Zero(t, res.SignalCount)
}

func TestDetectorNeverFiresBelowMinProfit(t *testing.T) {
	d := NewDetector(DefaultMomentumConfig())

	snap := healthySnapshot()
	snap.Momentum1h = -5
	snap.Momentum4h = -5
	snap.VolumeRatio = 0.1

	res := d.Check("ETHUSDT", 0.5, false, decimal.NewFromInt(3000), snap)
	assert.False(t, res.Triggered, "below min profit the stop owns the exit")
}

func TestDetectorRequiresTwoOfThree(t *testing.T) {
	d := NewDetector(DefaultMomentumConfig())
	price := decimal.NewFromInt(3000)

	// One signal only: momentum reversal.
	snap := healthySnapshot()
	snap.Momentum1h = -0.5
	res := d.Check("ETHUSDT", 3.0, false, price, snap)
	assert.True(t, res.PriceAction)
	assert.Equal(t, 1, res.SignalCount)
	assert.False(t, res.Triggered)

	// Add volume exhaustion: two signals, triggered.
	snap.VolumeRatio = 0.5
	res = d.Check("ETHUSDT", 3.0, false, price, snap)
	assert.True(t, res.VolumeExhaustion)
	assert.Equal(t, 2, res.SignalCount)
	assert.True(t, res.Triggered)
	assert.Len(t, res.Reasons, 2)
}

func TestDetectorHTFBreakdownPaths(t *testing.T) {
	d := NewDetector(DefaultMomentumConfig())

	// 4h weakening.
	snap := healthySnapshot()
	snap.Momentum4h = -1.0
	res := d.Check("ETHUSDT", 3.0, false, decimal.NewFromInt(3000), snap)
	assert.True(t, res.HTFBreakdown)

	// Price below the long EMA counts even with 4h holding up.
	snap = healthySnapshot()
	snap.LongEMA = decimal.NewFromInt(3200)
	res = d.Check("ETHUSDT", 3.0, false, decimal.NewFromInt(3000), snap)
	assert.True(t, res.HTFBreakdown)
}

func TestDetectorPyramidedUsesSlowThresholds(t *testing.T) {
	d := NewDetector(DefaultMomentumConfig())
	price := decimal.NewFromInt(3000)

	// 1h momentum 0.0 and volume 0.7: both fail fast thresholds
	// (0.1 / 0.8) but pass slow ones (-0.2 / 0.6).
	snap := healthySnapshot()
	snap.Momentum1h = 0.0
	snap.VolumeRatio = 0.7

	fast := d.Check("ETHUSDT", 3.0, false, price, snap)
	assert.True(t, fast.Triggered)

	slow := d.Check("ETHUSDT", 3.0, true, price, snap)
	assert.False(t, slow.Triggered, "pyramided positions get more room")
}

func TestDetectorStallingAtPeak(t *testing.T) {
	d := NewDetector(DefaultMomentumConfig())

	// Price within 1.5% of the recent high with momentum gone.
	snap := healthySnapshot()
	snap.RecentHigh = decimal.NewFromInt(3020)
	snap.Momentum1h = 0.0

	res := d.Check("ETHUSDT", 3.0, false, decimal.NewFromInt(3000), snap)
	assert.True(t, res.PriceAction)
	assert.Contains(t, res.Reasons[0], "stalling at peak")
}
