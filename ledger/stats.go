package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PERFORMANCE STATS - Aggregates over the closed-position history
// ═══════════════════════════════════════════════════════════════════════════════

// PerformanceStats summarizes closed trades. All-zero when there is no
// history; ProfitFactor is +Inf only in the defined case of gross profit
// with zero gross loss.
type PerformanceStats struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // 0-1

	GrossProfit decimal.Decimal
	GrossLoss   decimal.Decimal // positive magnitude
	NetProfit   decimal.Decimal

	AvgWinPct  float64
	AvgLossPct float64 // positive magnitude

	Expectancy   decimal.Decimal // net gain per trade
	ProfitFactor float64

	MaxDrawdown    decimal.Decimal // currency, peak-to-trough of cumulative P&L
	MaxDrawdownPct float64
}

// GetPerformanceStats computes aggregates over the chronological history.
func (l *Ledger) GetPerformanceStats() PerformanceStats {
	l.histMu.RLock()
	defer l.histMu.RUnlock()
	return computeStats(l.history)
}

func computeStats(history []ClosedPosition) PerformanceStats {
	stats := PerformanceStats{
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
		NetProfit:   decimal.Zero,
		Expectancy:  decimal.Zero,
		MaxDrawdown: decimal.Zero,
	}
	if len(history) == 0 {
		return stats
	}

	var winPctSum, lossPctSum float64

	cumulative := decimal.Zero
	peak := decimal.Zero
	peakSet := false

	for _, cp := range history {
		stats.TotalTrades++
		if cp.Profit.IsPositive() {
			stats.Wins++
			stats.GrossProfit = stats.GrossProfit.Add(cp.Profit)
			winPctSum += cp.ProfitPct
		} else {
			stats.Losses++
			stats.GrossLoss = stats.GrossLoss.Add(cp.Profit.Abs())
			lossPctSum += math.Abs(cp.ProfitPct)
		}

		// Drawdown over the chronological cumulative-profit curve.
		cumulative = cumulative.Add(cp.Profit)
		if !peakSet || cumulative.GreaterThan(peak) {
			peak = cumulative
			peakSet = true
		}
		dd := peak.Sub(cumulative)
		if dd.GreaterThan(stats.MaxDrawdown) {
			stats.MaxDrawdown = dd
			if peak.IsPositive() {
				stats.MaxDrawdownPct = dd.Div(peak).InexactFloat64() * 100
			}
		}
	}

	stats.NetProfit = stats.GrossProfit.Sub(stats.GrossLoss)
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades)
	stats.Expectancy = stats.NetProfit.Div(decimal.NewFromInt(int64(stats.TotalTrades)))

	if stats.Wins > 0 {
		stats.AvgWinPct = winPctSum / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLossPct = lossPctSum / float64(stats.Losses)
	}

	switch {
	case stats.GrossLoss.IsZero() && stats.GrossProfit.IsPositive():
		stats.ProfitFactor = math.Inf(1)
	case stats.GrossLoss.IsZero():
		stats.ProfitFactor = 0
	default:
		stats.ProfitFactor = stats.GrossProfit.Div(stats.GrossLoss).InexactFloat64()
	}

	return stats
}
