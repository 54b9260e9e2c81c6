package advisor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/pyrabot/types"
)

func TestRuleBasedStrongSetupEnters(t *testing.T) {
	v := NewRuleBased(70)

	snap := types.IndicatorSnapshot{
		ADX:        30,
		Momentum1h: 1.0,
		Momentum4h: 1.5,
		MACD:       types.MACD{Histogram: 0.5},
		RSI:        60,
	}

	d := v.Validate("ETHUSDT", decimal.NewFromInt(3000), snap)
	assert.Equal(t, types.DecisionEnter, d.Decision)
	assert.InDelta(t, 100, d.Confidence, 1e-9) // 50+20+20+10
	assert.NotEmpty(t, d.Reasoning)
}

func TestRuleBasedWeakSetupHolds(t *testing.T) {
	v := NewRuleBased(70)

	snap := types.IndicatorSnapshot{
		ADX:        15,
		Momentum1h: -0.5,
		Momentum4h: -1.0,
		RSI:        50,
	}

	d := v.Validate("ETHUSDT", decimal.NewFromInt(3000), snap)
	assert.Equal(t, types.DecisionHold, d.Decision)
	assert.InDelta(t, 50, d.Confidence, 1e-9)
}

func TestRuleBasedOverheatedRSIBleedsConfidence(t *testing.T) {
	v := NewRuleBased(70)

	snap := types.IndicatorSnapshot{
		ADX:        30,
		Momentum1h: 1.0,
		Momentum4h: 1.5,
		RSI:        80,
	}

	d := v.Validate("ETHUSDT", decimal.NewFromInt(3000), snap)
	assert.InDelta(t, 75, d.Confidence, 1e-9) // 50+20+20-15
}

func TestValidatePyramid(t *testing.T) {
	v := NewRuleBased(70)

	strong := types.IndicatorSnapshot{
		ADX:        30,
		Momentum1h: 0.5,
		Momentum4h: 0.8,
		RSI:        65,
	}
	d := v.ValidatePyramid("ETHUSDT", 1, 4.6, strong)
	assert.True(t, d.ShouldAdd)
	assert.Equal(t, 1, d.Level)

	stretched := strong
	stretched.RSI = 85
	stretched.Momentum4h = -0.1
	d = v.ValidatePyramid("ETHUSDT", 2, 9.5, stretched)
	assert.False(t, d.ShouldAdd) // 50+15+10-20 = 55
}
