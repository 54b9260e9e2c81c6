package risk

// ═══════════════════════════════════════════════════════════════════════════════
// COST/EDGE EVALUATOR - Is the proposed target worth the round trip?
// ═══════════════════════════════════════════════════════════════════════════════

// CostModel holds the fee and slippage assumptions. Spread is passed per
// call because it is instrument-specific and moves with the book.
type CostModel struct {
	FeeRatePct  float64 // per-side fee, %
	SlippagePct float64 // assumed slippage per round trip, %
}

// CostEstimate is the pure output consumed by gate stage 5.
type CostEstimate struct {
	TotalCostPct float64 // round-trip fees + spread + slippage
	CostFloorPct float64 // total cost x safety multiplier
	RiskReward   float64 // target / stop
	NetEdgePct   float64 // target - total cost
}

// Evaluate prices a proposed trade: spreadPct and targetPct/stopPct are
// percentages of entry price.
func (m CostModel) Evaluate(spreadPct, targetPct, stopPct, safetyMultiplier float64) CostEstimate {
	totalCost := m.FeeRatePct*2 + spreadPct + m.SlippagePct

	est := CostEstimate{
		TotalCostPct: totalCost,
		CostFloorPct: totalCost * safetyMultiplier,
		NetEdgePct:   targetPct - totalCost,
	}
	if stopPct > 0 {
		est.RiskReward = targetPct / stopPct
	}
	return est
}
