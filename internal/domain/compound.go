package domain

import "time"

// Pause reasons the compound strategy and orchestrator can report.
// They are stable identifiers, persisted and exposed in status reports.
const (
	PauseDailyLimit         = "daily_limit_reached"
	PauseExcessiveLosses    = "excessive_losses"
	PauseMajorDrawdown      = "major_drawdown"
	PauseTargetReached      = "target_reached"
	PausePersistenceFailure = "persistence_failure"
)

// CycleRecord is one completed compound cycle.
type CycleRecord struct {
	Number        int       `json:"number"`
	StartBalance  float64   `json:"start_balance"`
	EndBalance    float64   `json:"end_balance"`
	TargetBalance float64   `json:"target_balance"`
	GainAmount    float64   `json:"gain_amount"`
	GainPct       float64   `json:"gain_pct"`
	TradesInCycle int       `json:"trades_in_cycle"`
	CompletedAt   time.Time `json:"completed_at"`
}

// CycleResult reports the outcome of a cycle check against the balance.
type CycleResult struct {
	Complete      bool
	Completed     *CycleRecord
	NewTarget     float64
	Progress      float64
	TargetCapital bool // balance reached the overall target capital
}

// NextGainPct returns the required gain for the cycle after `completed`
// cycles. Targets ease off as the balance compounds: 10% for the first
// three cycles, 8% for the next three, 6% afterwards.
func NextGainPct(completed int) float64 {
	switch {
	case completed <= 3:
		return 0.10
	case completed <= 6:
		return 0.08
	default:
		return 0.06
	}
}

// PerformanceTrend classifies the last three cycle gains as improving,
// declining or stable. Fewer than three cycles → "insufficient_data".
func PerformanceTrend(cycles []CycleRecord) string {
	if len(cycles) < 3 {
		return "insufficient_data"
	}
	last := cycles[len(cycles)-3:]
	switch {
	case last[2].GainPct > last[1].GainPct && last[1].GainPct > last[0].GainPct:
		return "improving"
	case last[2].GainPct < last[1].GainPct && last[1].GainPct < last[0].GainPct:
		return "declining"
	default:
		return "stable"
	}
}
