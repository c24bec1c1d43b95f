package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextGainPct_Schedule(t *testing.T) {
	assert.Equal(t, 0.10, NextGainPct(1))
	assert.Equal(t, 0.10, NextGainPct(3))
	assert.Equal(t, 0.08, NextGainPct(4))
	assert.Equal(t, 0.08, NextGainPct(6))
	assert.Equal(t, 0.06, NextGainPct(7))
	assert.Equal(t, 0.06, NextGainPct(20))
}

func TestPerformanceTrend_InsufficientData(t *testing.T) {
	cycles := []CycleRecord{{GainPct: 10}, {GainPct: 11}}
	assert.Equal(t, "insufficient_data", PerformanceTrend(cycles))
}

func TestPerformanceTrend_Improving(t *testing.T) {
	cycles := []CycleRecord{{GainPct: 8}, {GainPct: 9}, {GainPct: 10}}
	assert.Equal(t, "improving", PerformanceTrend(cycles))
}

func TestPerformanceTrend_Declining(t *testing.T) {
	cycles := []CycleRecord{{GainPct: 10}, {GainPct: 9}, {GainPct: 8}}
	assert.Equal(t, "declining", PerformanceTrend(cycles))
}

func TestPerformanceTrend_Stable(t *testing.T) {
	cycles := []CycleRecord{{GainPct: 10}, {GainPct: 8}, {GainPct: 9}}
	assert.Equal(t, "stable", PerformanceTrend(cycles))
}

func TestRiskLevelFor_Bands(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelFor(1, 100))
	assert.Equal(t, RiskMedium, RiskLevelFor(3, 100))
	assert.Equal(t, RiskHigh, RiskLevelFor(8, 100))
	assert.Equal(t, RiskCritical, RiskLevelFor(15, 100))
	assert.Equal(t, RiskCritical, RiskLevelFor(10, 0))
}
