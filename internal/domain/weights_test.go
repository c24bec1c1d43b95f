package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightsSum(w *StrategyWeights) float64 {
	var total float64
	for _, v := range w.Weights {
		total += v
	}
	return total
}

func TestNewStrategyWeights_Equal(t *testing.T) {
	w := NewStrategyWeights("trend_following", "mean_reversion", "momentum", "range_scalping")
	require.Len(t, w.Weights, 4)
	for _, v := range w.Weights {
		assert.InDelta(t, 0.25, v, 1e-9)
	}
}

func TestStrategyWeights_NoAdaptationBelowMinTrades(t *testing.T) {
	w := NewStrategyWeights("a", "b")
	now := time.Now()
	for i := 0; i < 9; i++ {
		w.Record("a", 5.0, now)
	}
	assert.InDelta(t, 0.5, w.Weights["a"], 1e-9)
	assert.InDelta(t, 0.5, w.Weights["b"], 1e-9)
}

func TestStrategyWeights_ShiftTowardWinner(t *testing.T) {
	w := NewStrategyWeights("a", "b")
	now := time.Now()
	for i := 0; i < 6; i++ {
		w.Record("a", 2.0, now)
	}
	for i := 0; i < 6; i++ {
		w.Record("b", -2.0, now)
	}
	assert.Greater(t, w.Weights["a"], w.Weights["b"])
	assert.InDelta(t, 1.0, weightsSum(w), 1e-6)
}

func TestStrategyWeights_SumInvariantUnderChurn(t *testing.T) {
	w := NewStrategyWeights("a", "b", "c")
	now := time.Now()
	pnls := []float64{1.5, -0.8, 2.1, -1.2, 0.4, 3.0, -0.1, 0.9}
	strategies := []string{"a", "b", "c"}
	for i := 0; i < 150; i++ {
		w.Record(strategies[i%3], pnls[i%len(pnls)], now)
		assert.InDelta(t, 1.0, weightsSum(w), 1e-6)
	}
}

func TestStrategyWeights_WindowTrimmed(t *testing.T) {
	w := NewStrategyWeights("a")
	now := time.Now()
	for i := 0; i < 250; i++ {
		w.Record("a", 1.0, now)
	}
	assert.Len(t, w.History, 100)
}

func TestStrategyWeights_SmallGapNoAdaptation(t *testing.T) {
	// best-worst gap below threshold → weights untouched
	w := NewStrategyWeights("a", "b")
	now := time.Now()
	for i := 0; i < 6; i++ {
		w.Record("a", 0.02, now)
	}
	for i := 0; i < 6; i++ {
		w.Record("b", 0.01, now)
	}
	assert.InDelta(t, 0.5, w.Weights["a"], 1e-9)
}

func TestStrategyWeights_Snapshot(t *testing.T) {
	w := NewStrategyWeights("a", "b")
	snap := w.Snapshot()
	snap["a"] = 99
	assert.InDelta(t, 0.5, w.Weights["a"], 1e-9)
}
