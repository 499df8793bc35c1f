package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSelectBest_Empty(t *testing.T) {
	_, ok := SelectBest(nil)
	assert.False(t, ok)
}

func TestSelectBest_NewRRPPreference(t *testing.T) {
	candidates := []Candidate{
		{Kind: KindOldRRP, Value: dec("100"), Confidence: 0.50},
		{Kind: KindNewRRP, Value: dec("120"), Confidence: 1.00},
	}

	best, ok := SelectBest(candidates)
	require.True(t, ok)
	assert.Equal(t, KindNewRRP, best.Kind)
	assert.True(t, best.Value.Equal(dec("120")))
	assert.GreaterOrEqual(t, best.Confidence, 1.00)
	assert.LessOrEqual(t, best.Confidence, 1.0)
}

func TestSelectBest_PriorityThenConfidence(t *testing.T) {
	candidates := []Candidate{
		{Kind: KindRRP, Value: dec("80"), Confidence: 0.9},
		{Kind: KindRRP, Value: dec("85"), Confidence: 0.95},
		{Kind: KindCost, Value: dec("40"), Confidence: 1.0},
	}

	best, ok := SelectBest(candidates)
	require.True(t, ok)
	assert.Equal(t, KindRRP, best.Kind)
	assert.True(t, best.Value.Equal(dec("85")), "higher confidence wins within a kind")
}

func TestSelectBest_Deterministic(t *testing.T) {
	candidates := []Candidate{
		{Kind: KindGeneric, Value: dec("10"), Confidence: 0.5},
		{Kind: KindCurrent, Value: dec("20"), Confidence: 0.9},
		{Kind: KindRetail, Value: dec("30"), Confidence: 0.9},
	}

	first, ok := SelectBest(candidates)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, ok := SelectBest(candidates)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, KindCurrent, first.Kind)
}

func TestKindPriorityOrdering(t *testing.T) {
	order := []Kind{KindNewRRP, KindCurrent, KindRRP, KindRetail, KindOldRRP, KindCost, KindGeneric}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i-1].Priority(), order[i].Priority(),
			"%s must outrank %s", order[i-1], order[i])
	}
}
