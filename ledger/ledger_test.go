package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/pyrabot/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func openTestPosition(t *testing.T, l *Ledger) {
	t.Helper()
	err := l.AddPosition("BTCUSDT", d("50000"), d("0.1"), d("47500"), d("55000"), EntryMetadata{
		Regime:        types.RegimeModerate,
		TrendStrength: 28,
	})
	require.NoError(t, err)
}

func TestPositionLifecycleWithPyramiding(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l)

	// 4.5% up unlocks level 1.
	l.UpdatePosition("BTCUSDT", d("52250"))
	assert.True(t, l.IsReadyForL1("BTCUSDT"))
	assert.False(t, l.IsReadyForL2("BTCUSDT"))

	require.NoError(t, l.AddPyramidLevel("BTCUSDT", 1, d("52250"), d("0.02"), 80))

	pos, ok := l.GetPosition("BTCUSDT")
	require.True(t, ok)
	assert.True(t, pos.TotalVolume.Equal(d("0.12")), "total volume %s", pos.TotalVolume)
	assert.Equal(t, 1, pos.ActivatedLevels())

	// Profit is weighted across both legs: the L1 leg starts flat, so
	// the blended profit % drops below the L2 trigger.
	assert.False(t, l.IsReadyForL2("BTCUSDT"))

	// A pullback erodes exactly peak minus current.
	l.UpdatePosition("BTCUSDT", d("51000"))
	pos, _ = l.GetPosition("BTCUSDT")
	// Initial leg: (51000-50000)*0.1 = 100; L1 leg: (51000-52250)*0.02 = -25.
	assert.True(t, pos.CurrentProfit.Equal(d("75")), "profit %s", pos.CurrentProfit)
	assert.True(t, pos.ErosionUsed.Equal(pos.PeakProfit.Sub(pos.CurrentProfit)))
}

func TestPeakProfitNeverDecreases(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l)

	l.UpdatePosition("BTCUSDT", d("53000"))
	pos, _ := l.GetPosition("BTCUSDT")
	peak := pos.PeakProfit
	assert.True(t, peak.Equal(d("300")))

	l.UpdatePosition("BTCUSDT", d("51000"))
	pos, _ = l.GetPosition("BTCUSDT")
	assert.True(t, pos.PeakProfit.Equal(peak), "peak moved on a pullback")
	assert.True(t, pos.ErosionUsed.Equal(d("200")))

	// New high resets erosion to exactly zero.
	l.UpdatePosition("BTCUSDT", d("53500"))
	pos, _ = l.GetPosition("BTCUSDT")
	assert.True(t, pos.ErosionUsed.IsZero())
	assert.True(t, pos.PeakProfit.Equal(d("350")))
}

func TestDuplicateOpenIsRejected(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l)

	err := l.AddPosition("BTCUSDT", d("51000"), d("0.2"), d("48000"), d("56000"), EntryMetadata{})
	assert.ErrorIs(t, err, ErrPositionExists)

	// Original untouched.
	pos, _ := l.GetPosition("BTCUSDT")
	assert.True(t, pos.EntryPrice.Equal(d("50000")))
}

func TestPyramidLevelRejections(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l)

	// Level 2 before level 1 is out of order.
	err := l.AddPyramidLevel("BTCUSDT", 2, d("52250"), d("0.02"), 80)
	assert.ErrorIs(t, err, ErrLevelOutOfOrder)

	require.NoError(t, l.AddPyramidLevel("BTCUSDT", 1, d("52250"), d("0.02"), 80))

	// Same level twice.
	err = l.AddPyramidLevel("BTCUSDT", 1, d("52500"), d("0.02"), 80)
	assert.ErrorIs(t, err, ErrDuplicateLevel)

	require.NoError(t, l.AddPyramidLevel("BTCUSDT", 2, d("54500"), d("0.01"), 85))

	// A third level exceeds the cap.
	err = l.AddPyramidLevel("BTCUSDT", 3, d("55000"), d("0.01"), 90)
	assert.ErrorIs(t, err, ErrLevelCapExceeded)

	pos, _ := l.GetPosition("BTCUSDT")
	assert.Equal(t, 2, pos.ActivatedLevels())

	// No position at all.
	err = l.AddPyramidLevel("ETHUSDT", 1, d("3000"), d("1"), 80)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestExitChecks(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l)

	assert.False(t, l.CheckStopLoss("BTCUSDT", d("47501")))
	assert.True(t, l.CheckStopLoss("BTCUSDT", d("47500")))
	assert.True(t, l.CheckStopLoss("BTCUSDT", d("47000")))

	assert.False(t, l.CheckProfitTarget("BTCUSDT", d("54999")))
	assert.True(t, l.CheckProfitTarget("BTCUSDT", d("55000")))

	// Unknown instrument never fires.
	assert.False(t, l.CheckStopLoss("ETHUSDT", d("1")))
	assert.False(t, l.CheckErosionCap("ETHUSDT"))
}

func TestErosionCapByRegime(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l) // MODERATE: 30% of peak

	l.UpdatePosition("BTCUSDT", d("52000")) // peak 200
	assert.False(t, l.CheckErosionCap("BTCUSDT"))

	// Give back 25% of peak: still inside a moderate cap.
	l.UpdatePosition("BTCUSDT", d("51500"))
	assert.False(t, l.CheckErosionCap("BTCUSDT"))

	// Give back 35% of peak: over the cap.
	l.UpdatePosition("BTCUSDT", d("51300"))
	assert.True(t, l.CheckErosionCap("BTCUSDT"))
}

func TestErosionCapNeedsPositivePeak(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l)

	// Straight underwater: no peak, no erosion exit. The stop owns this.
	l.UpdatePosition("BTCUSDT", d("48000"))
	assert.False(t, l.CheckErosionCap("BTCUSDT"))
}

type failingStore struct{}

func (failingStore) SaveClosedPosition(ClosedPosition) error {
	return errors.New("disk on fire")
}

func TestClosePosition(t *testing.T) {
	l := New(DefaultConfig(), failingStore{})
	openTestPosition(t, l)
	require.NoError(t, l.AddPyramidLevel("BTCUSDT", 1, d("52250"), d("0.02"), 80))

	closed, err := l.ClosePosition("BTCUSDT", d("54000"), types.ExitProfitTarget)
	require.NoError(t, err, "persistence failure must not fail the close")

	// (54000-50000)*0.1 + (54000-52250)*0.02 = 400 + 35
	assert.True(t, closed.Profit.Equal(d("435")), "profit %s", closed.Profit)
	assert.Equal(t, types.ExitProfitTarget, closed.ExitReason)
	assert.Equal(t, 1, closed.Levels)

	// Gone from the open set, present in history.
	_, ok := l.GetPosition("BTCUSDT")
	assert.False(t, ok)
	require.Len(t, l.History(), 1)

	// Closing again is an error.
	_, err = l.ClosePosition("BTCUSDT", d("54000"), types.ExitStopLoss)
	assert.ErrorIs(t, err, ErrNoPosition)

	// Instrument is reusable after close.
	openTestPosition(t, l)
	_, ok = l.GetPosition("BTCUSDT")
	assert.True(t, ok)
}

func TestOpenRisk(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l) // |50000-47500| * 0.1 = 250

	require.NoError(t, l.AddPosition("ETHUSDT", d("3000"), d("1"), d("2850"), d("3300"), EntryMetadata{
		Regime: types.RegimeStrong,
	}))

	// 250 + |3000-2850|*1 = 400
	assert.True(t, l.OpenRisk().Equal(d("400")), "open risk %s", l.OpenRisk())
}

func TestHealthGrading(t *testing.T) {
	l := New(DefaultConfig(), nil)
	openTestPosition(t, l) // cap 0.30

	l.UpdatePosition("BTCUSDT", d("52000")) // peak 200
	h, ok := l.Health("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, types.HealthHealthy, h.Status)

	// 10% of peak given back = 33% of the cap.
	l.UpdatePosition("BTCUSDT", d("51800"))
	h, _ = l.Health("BTCUSDT")
	assert.Equal(t, types.HealthCaution, h.Status)

	// 20% of peak = 66% of the cap.
	l.UpdatePosition("BTCUSDT", d("51600"))
	h, _ = l.Health("BTCUSDT")
	assert.Equal(t, types.HealthRisk, h.Status)

	// 25% of peak = 83% of the cap.
	l.UpdatePosition("BTCUSDT", d("51500"))
	h, _ = l.Health("BTCUSDT")
	assert.Equal(t, types.HealthAlert, h.Status)
}
