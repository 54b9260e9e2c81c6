package advisor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/pyrabot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// VALIDATOR - Advisory second opinion on entries and pyramid adds
// ═══════════════════════════════════════════════════════════════════════════════

// Validator is the advisory collaborator consumed by the engine. The
// risk core only ever reads the decision/confidence fields.
type Validator interface {
	Validate(instrument string, price decimal.Decimal, snap types.IndicatorSnapshot) types.ValidationDecision
	ValidatePyramid(instrument string, level int, profitPct float64, snap types.IndicatorSnapshot) types.PyramidValidationDecision
}

// RuleBased is the built-in validator: a conservative score from trend
// strength and momentum alignment, so the loop runs without an external
// provider wired in.
type RuleBased struct {
	MinConfidence float64 // below this the decision is HOLD
}

// NewRuleBased creates the built-in validator.
func NewRuleBased(minConfidence float64) *RuleBased {
	return &RuleBased{MinConfidence: minConfidence}
}

// Validate scores an entry candidate 0-100.
func (v *RuleBased) Validate(instrument string, price decimal.Decimal, snap types.IndicatorSnapshot) types.ValidationDecision {
	score := 50.0
	var reasons []string

	// Trend strength contributes up to 20 points.
	if snap.ADX >= 25 {
		score += 20
		reasons = append(reasons, fmt.Sprintf("established trend (ADX %.1f)", snap.ADX))
	} else if snap.ADX >= 20 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("forming trend (ADX %.1f)", snap.ADX))
	}

	// Momentum alignment across timeframes, up to 20 points.
	if snap.Momentum1h > 0 && snap.Momentum4h > 0 {
		score += 20
		reasons = append(reasons, "1h and 4h momentum aligned")
	} else if snap.Momentum1h > 0 {
		score += 10
		reasons = append(reasons, "1h momentum positive")
	}

	// MACD histogram turning up, 10 points.
	if snap.MACD.Histogram > 0 {
		score += 10
		reasons = append(reasons, "MACD histogram positive")
	}

	// Overheated RSI bleeds confidence.
	if snap.RSI > 75 {
		score -= 15
		reasons = append(reasons, fmt.Sprintf("RSI elevated (%.1f)", snap.RSI))
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	decision := types.DecisionHold
	if score >= v.MinConfidence {
		decision = types.DecisionEnter
	}

	return types.ValidationDecision{
		Decision:   decision,
		Confidence: score,
		Reasoning:  reasons,
	}
}

// ValidatePyramid approves an add only when the trend is still intact
// and the position has real cushion.
func (v *RuleBased) ValidatePyramid(instrument string, level int, profitPct float64, snap types.IndicatorSnapshot) types.PyramidValidationDecision {
	score := 50.0
	var reasons []string

	if snap.Momentum1h > 0 {
		score += 15
		reasons = append(reasons, "1h momentum still positive")
	}
	if snap.Momentum4h > 0 {
		score += 15
		reasons = append(reasons, "4h momentum still positive")
	}
	if snap.ADX >= 25 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("trend intact (ADX %.1f)", snap.ADX))
	}
	if snap.RSI > 80 {
		score -= 20
		reasons = append(reasons, fmt.Sprintf("RSI stretched (%.1f)", snap.RSI))
	}

	return types.PyramidValidationDecision{
		ShouldAdd:  score >= v.MinConfidence,
		Level:      level,
		Confidence: score,
		Reasoning:  reasons,
	}
}
