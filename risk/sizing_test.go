package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSizer() *Sizer {
	return NewSizer(DefaultSizerConfig())
}

var (
	balance = decimal.NewFromInt(10000)
	price   = decimal.NewFromInt(50000)
)

func TestSizeNoHistoryUsesDefaultRisk(t *testing.T) {
	s := newTestSizer()

	stake, err := s.Size(balance, 70, price, 0.05, TrailingPerformance{}, decimal.Zero)
	require.NoError(t, err)

	// default 0.05 kelly, damped to 0.0125, x0.5 at min confidence =
	// 0.00625, clamped up to the 1% floor.
	assert.InDelta(t, 0.01, stake.RiskFraction, 1e-9)
	assert.True(t, stake.RiskCurrency.Equal(decimal.NewFromInt(100)))
	// stake = 100 / 0.05 = 2000
	assert.True(t, stake.Currency.Equal(decimal.NewFromInt(2000)))
	assert.True(t, stake.Asset.Equal(stake.Currency.Div(price)))
}

func TestRiskFractionAlwaysWithinBounds(t *testing.T) {
	s := newTestSizer()
	cfg := DefaultSizerConfig()

	perfs := []TrailingPerformance{
		{},
		{Trades: 50, WinRate: 0, AvgWinPct: 0, AvgLossPct: 3},   // all losses
		{Trades: 50, WinRate: 1, AvgWinPct: 5, AvgLossPct: 0},   // all wins, no loss magnitude
		{Trades: 50, WinRate: 1, AvgWinPct: 5, AvgLossPct: 1},   // perfect record
		{Trades: 50, WinRate: 0.5, AvgWinPct: 2, AvgLossPct: 2},
		{Trades: 3, WinRate: 0.33, AvgWinPct: 1, AvgLossPct: 4},
	}

	for _, perf := range perfs {
		for _, conf := range []float64{0, 70, 82.5, 95, 100} {
			stake, err := s.Size(balance, conf, price, 0.05, perf, decimal.Zero)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, stake.RiskFraction, cfg.MinRiskPerTrade)
			assert.LessOrEqual(t, stake.RiskFraction, cfg.MaxRiskPerTrade)
		}
	}
}

func TestKellyNegativeEdgeClampsToFloor(t *testing.T) {
	s := newTestSizer()

	// 30% win rate at 1:1 payoff is a negative-edge book; raw Kelly is
	// negative and must clamp to the floor, not go short.
	perf := TrailingPerformance{Trades: 50, WinRate: 0.3, AvgWinPct: 2, AvgLossPct: 2}
	k := s.kellyFraction(perf)
	assert.InDelta(t, 0.01*0.25, k, 1e-9)
}

func TestKellyPositiveEdge(t *testing.T) {
	s := newTestSizer()

	// W=0.6, R=2: raw = 0.6 - 0.4/2 = 0.4, clamped to 0.10, damped to 0.025.
	perf := TrailingPerformance{Trades: 50, WinRate: 0.6, AvgWinPct: 4, AvgLossPct: 2}
	k := s.kellyFraction(perf)
	assert.InDelta(t, 0.10*0.25, k, 1e-9)
}

func TestConfidenceMultiplierMapping(t *testing.T) {
	s := newTestSizer()

	assert.InDelta(t, 0.5, s.confidenceMultiplier(70), 1e-9)
	assert.InDelta(t, 1.25, s.confidenceMultiplier(82.5), 1e-9)
	assert.InDelta(t, 2.0, s.confidenceMultiplier(95), 1e-9)
	// Outside the band clamps, never extrapolates.
	assert.InDelta(t, 0.5, s.confidenceMultiplier(10), 1e-9)
	assert.InDelta(t, 2.0, s.confidenceMultiplier(100), 1e-9)
}

func TestExposureGuard(t *testing.T) {
	s := newTestSizer()

	// Limit is 5% of 10000 = 500. Open risk 450 leaves room for at most
	// 50; min risk per trade is 100, so this must be rejected.
	openRisk := decimal.NewFromInt(450)
	_, err := s.Size(balance, 70, price, 0.05, TrailingPerformance{}, openRisk)
	assert.ErrorIs(t, err, ErrExposureExceeded)

	// With no open risk the same stake fits.
	_, err = s.Size(balance, 70, price, 0.05, TrailingPerformance{}, decimal.Zero)
	assert.NoError(t, err)
}

func TestSizeInvalidInputs(t *testing.T) {
	s := newTestSizer()

	_, err := s.Size(balance, 80, price, 0, TrailingPerformance{}, decimal.Zero)
	assert.Error(t, err)

	_, err = s.Size(balance, 80, price, -0.05, TrailingPerformance{}, decimal.Zero)
	assert.Error(t, err)

	_, err = s.Size(decimal.Zero, 80, price, 0.05, TrailingPerformance{}, decimal.Zero)
	assert.Error(t, err)

	_, err = s.Size(balance, 80, decimal.Zero, 0.05, TrailingPerformance{}, decimal.Zero)
	assert.Error(t, err)
}
