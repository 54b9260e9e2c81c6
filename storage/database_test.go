package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/pyrabot/ledger"
	"github.com/web3guy0/pyrabot/types"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestClosedPositionRoundTrip(t *testing.T) {
	db := newTestDB(t)

	now := time.Now().Truncate(time.Second)
	cp := ledger.ClosedPosition{
		Instrument:    "BTCUSDT",
		EntryPrice:    decimal.NewFromInt(50000),
		ExitPrice:     decimal.NewFromInt(54000),
		InitialVolume: decimal.NewFromFloat(0.1),
		TotalVolume:   decimal.NewFromFloat(0.12),
		Levels:        1,
		Profit:        decimal.NewFromInt(435),
		ProfitPct:     7.2,
		PeakProfit:    decimal.NewFromInt(450),
		ErosionUsed:   decimal.NewFromInt(15),
		Regime:        types.RegimeModerate,
		TrendStrength: 28,
		ExitReason:    types.ExitProfitTarget,
		EntryTime:     now.Add(-2 * time.Hour),
		ClosedAt:      now,
	}

	require.NoError(t, db.SaveClosedPosition(cp))

	loaded, err := db.LoadClosedPositions()
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, cp.Instrument, got.Instrument)
	assert.True(t, got.Profit.Equal(cp.Profit))
	assert.True(t, got.TotalVolume.Equal(cp.TotalVolume))
	assert.Equal(t, cp.Regime, got.Regime)
	assert.Equal(t, cp.ExitReason, got.ExitReason)
	assert.Equal(t, cp.Levels, got.Levels)
}

func TestLoadOrdersByCloseTime(t *testing.T) {
	db := newTestDB(t)

	base := time.Now().Add(-time.Hour)
	for _, offset := range []time.Duration{30 * time.Minute, 0, 15 * time.Minute} {
		require.NoError(t, db.SaveClosedPosition(ledger.ClosedPosition{
			Instrument: "ETHUSDT",
			Profit:     decimal.NewFromInt(int64(offset.Minutes())),
			ClosedAt:   base.Add(offset),
		}))
	}

	loaded, err := db.LoadClosedPositions()
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.True(t, loaded[0].ClosedAt.Before(loaded[1].ClosedAt))
	assert.True(t, loaded[1].ClosedAt.Before(loaded[2].ClosedAt))
}

func TestRiskSnapshotUpsert(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SaveRiskSnapshot(decimal.NewFromInt(10000), decimal.NewFromInt(250), 2))
	// Same day again: replaces, no duplicate row.
	require.NoError(t, db.SaveRiskSnapshot(decimal.NewFromInt(10100), decimal.NewFromInt(300), 3))

	var count int64
	require.NoError(t, db.db.Model(&RiskSnapshot{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var snap RiskSnapshot
	require.NoError(t, db.db.First(&snap).Error)
	assert.Equal(t, 3, snap.OpenCount)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(10100)))
}
