package domain

// Assessment is the outcome of validating a signal against risk policy.
// Blocks are hard rejections; Warnings only raise the risk score.
type Assessment struct {
	Valid     bool
	RiskScore int
	Warnings  []string
	Blocks    []string
}

// Sizing is a risk gate sizing decision.
type Sizing struct {
	Size         float64
	RiskLevel    string
	StopDistance float64
	RiskAmount   float64
	MaxLoss      float64
	Approved     bool
	Reason       string
}

// Risk levels by position share of balance.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// RiskLevelFor bands a position size by its share of the account balance.
func RiskLevelFor(size, balance float64) string {
	if balance <= 0 {
		return RiskCritical
	}
	pct := size / balance * 100
	switch {
	case pct < 2:
		return RiskLow
	case pct < 5:
		return RiskMedium
	case pct < 10:
		return RiskHigh
	default:
		return RiskCritical
	}
}
