package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// POSITION - One open trade with its pyramid levels and erosion bookkeeping
// ═══════════════════════════════════════════════════════════════════════════════

const maxPyramidLevels = 2

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// PyramidLevel is one add-on leg on top of the initial entry.
type PyramidLevel struct {
	Level      int // 1 or 2
	EntryPrice decimal.Decimal
	Volume     decimal.Decimal
	EntryTime  time.Time
	TriggerPct float64 // profit fraction that unlocked this level
	Confidence float64 // validation confidence at add time
	Status     string
}

// EntryMetadata captures the market context recorded at entry.
type EntryMetadata struct {
	Regime        types.Regime
	TrendStrength float64
	Reasoning     []string
}

// Position is an open trade. All mutations go through the Ledger, which
// serializes them per instrument.
type Position struct {
	Instrument string

	EntryPrice    decimal.Decimal
	InitialVolume decimal.Decimal
	EntryTime     time.Time

	StopLoss     decimal.Decimal
	ProfitTarget decimal.Decimal

	Levels      []PyramidLevel
	TotalVolume decimal.Decimal // initial + all levels

	CurrentProfit decimal.Decimal // currency, across all legs
	ProfitPct     float64
	PeakProfit    decimal.Decimal // high-water mark, never decreases while open
	ErosionCap    float64         // tolerated giveback as a fraction of peak profit
	ErosionUsed   decimal.Decimal // peak - current when below peak, else zero

	Meta   EntryMetadata
	Status string

	// Set once, on close.
	ExitPrice  decimal.Decimal
	ExitTime   time.Time
	ExitReason types.ExitReason
}

// ActivatedLevels returns how many pyramid levels are active.
func (p *Position) ActivatedLevels() int {
	return len(p.Levels)
}

// totalCost is the currency spent across the initial leg and all levels.
func (p *Position) totalCost() decimal.Decimal {
	cost := p.EntryPrice.Mul(p.InitialVolume)
	for _, lvl := range p.Levels {
		cost = cost.Add(lvl.EntryPrice.Mul(lvl.Volume))
	}
	return cost
}

// recompute refreshes profit, peak and erosion from the given price.
// Erosion resets to exactly zero the instant a new peak is made.
func (p *Position) recompute(price decimal.Decimal) {
	profit := price.Sub(p.EntryPrice).Mul(p.InitialVolume)
	for _, lvl := range p.Levels {
		profit = profit.Add(price.Sub(lvl.EntryPrice).Mul(lvl.Volume))
	}
	p.CurrentProfit = profit

	if cost := p.totalCost(); !cost.IsZero() {
		p.ProfitPct = profit.Div(cost).InexactFloat64() * 100
	}

	if profit.GreaterThanOrEqual(p.PeakProfit) {
		p.PeakProfit = profit
		p.ErosionUsed = decimal.Zero
	} else {
		p.ErosionUsed = p.PeakProfit.Sub(profit)
	}
}

// erosionFraction returns how much of the peak has been given back,
// as a fraction of peak profit. Zero until there is a positive peak.
func (p *Position) erosionFraction() float64 {
	if !p.PeakProfit.IsPositive() {
		return 0
	}
	return p.ErosionUsed.Div(p.PeakProfit).InexactFloat64()
}

// snapshot returns a value copy safe to hand to callers.
func (p *Position) snapshot() Position {
	cp := *p
	cp.Levels = make([]PyramidLevel, len(p.Levels))
	copy(cp.Levels, p.Levels)
	cp.Meta.Reasoning = append([]string(nil), p.Meta.Reasoning...)
	return cp
}

// ClosedPosition is an immutable record of a position at close time.
type ClosedPosition struct {
	Instrument    string
	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	InitialVolume decimal.Decimal
	TotalVolume   decimal.Decimal
	Levels        int
	Profit        decimal.Decimal // total-volume weighted, same math as live updates
	ProfitPct     float64
	PeakProfit    decimal.Decimal
	ErosionUsed   decimal.Decimal
	Regime        types.Regime
	TrendStrength float64
	ExitReason    types.ExitReason
	EntryTime     time.Time
	ClosedAt      time.Time
}
