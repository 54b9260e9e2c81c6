package advisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetSpendToExhaustion(t *testing.T) {
	b := NewBudget(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow())
		assert.True(t, b.Spend())
	}

	assert.False(t, b.Allow())
	assert.False(t, b.Spend())
	assert.Zero(t, b.Remaining())
}

func TestBudgetWindowReset(t *testing.T) {
	b := NewBudget(1, 20*time.Millisecond)

	assert.True(t, b.Spend())
	assert.False(t, b.Spend())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Spend(), "new window refills the budget")
}

func TestBudgetAllowDoesNotSpend(t *testing.T) {
	b := NewBudget(2, time.Hour)

	for i := 0; i < 10; i++ {
		assert.True(t, b.Allow())
	}
	assert.Equal(t, 2, b.Remaining())
}
