package advisor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/pyrabot/types"
)

func sampleSnap() types.IndicatorSnapshot {
	return types.IndicatorSnapshot{
		RSI:         62,
		Momentum1h:  0.8,
		Momentum4h:  1.1,
		VolumeRatio: 1.4,
	}
}

func TestFingerprintBucketsSmallWiggles(t *testing.T) {
	snap := sampleSnap()

	a := Fingerprint("ETHUSDT", decimal.NewFromFloat(3000.00), snap)
	b := Fingerprint("ETHUSDT", decimal.NewFromFloat(3001.50), snap) // +0.05%
	assert.Equal(t, a, b, "near-identical setups must share a key")

	c := Fingerprint("ETHUSDT", decimal.NewFromFloat(3100), snap) // +3.3%
	assert.NotEqual(t, a, c)

	d := Fingerprint("BTCUSDT", decimal.NewFromFloat(3000), snap)
	assert.NotEqual(t, a, d, "keys are per instrument")
}

func TestFingerprintSensitiveToIndicators(t *testing.T) {
	price := decimal.NewFromInt(3000)
	a := Fingerprint("ETHUSDT", price, sampleSnap())

	moved := sampleSnap()
	moved.RSI = 80
	assert.NotEqual(t, a, Fingerprint("ETHUSDT", price, moved))

	moved = sampleSnap()
	moved.Momentum1h = 2.5
	assert.NotEqual(t, a, Fingerprint("ETHUSDT", price, moved))
}

func TestCacheHitAndExpiry(t *testing.T) {
	c := NewCache(30 * time.Millisecond)
	decision := types.ValidationDecision{Decision: types.DecisionEnter, Confidence: 85}

	c.Put("k", decision)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, decision, got)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry must expire")
	assert.Zero(t, c.Len(), "expired entry is evicted on read")
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(time.Minute)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}
