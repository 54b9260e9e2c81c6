package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTickerSpreadPct(t *testing.T) {
	tick := Ticker{
		Price:  decimal.NewFromInt(2000),
		Spread: decimal.NewFromInt(1),
	}
	assert.InDelta(t, 0.05, tick.SpreadPct(), 1e-9)

	assert.Zero(t, Ticker{}.SpreadPct(), "zero price must not divide")
}
