// Package risk implements the global risk gate: signal validation with
// an additive risk score, independent position sizing caps, daily loss
// accounting and the emergency stop latch.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"deltabot/internal/domain"
)

const (
	defaultMaxPortfolioRiskPct = 0.02
	defaultMaxPositionPct      = 0.10
	defaultMaxDailyTrades      = 50
	defaultMaxDailyLossPct     = 0.05
	defaultEmergencyStopPct    = 0.15
	defaultStopDistance        = 0.02
	defaultTradingHourStart    = 9
	defaultTradingHourEnd      = 16
	previewSizeCap             = 50.0

	blockScore = 50
)

// Policy is the gate configuration.
type Policy struct {
	MaxPortfolioRiskPct float64
	MaxPositionPct      float64
	MaxDailyTrades      int
	MaxDailyLossPct     float64
	EmergencyStopPct    float64
	DefaultStopDistance float64
	TradingHourStart    int
	TradingHourEnd      int
	Preview             bool
	ResetToken          string
}

// DefaultPolicy returns the standard conservative policy with preview on.
func DefaultPolicy() Policy {
	return Policy{
		MaxPortfolioRiskPct: defaultMaxPortfolioRiskPct,
		MaxPositionPct:      defaultMaxPositionPct,
		MaxDailyTrades:      defaultMaxDailyTrades,
		MaxDailyLossPct:     defaultMaxDailyLossPct,
		EmergencyStopPct:    defaultEmergencyStopPct,
		DefaultStopDistance: defaultStopDistance,
		TradingHourStart:    defaultTradingHourStart,
		TradingHourEnd:      defaultTradingHourEnd,
		Preview:             true,
	}
}

// Gate enforces the risk policy. Safe for concurrent use.
type Gate struct {
	policy Policy
	now    func() time.Time

	mu             sync.Mutex
	emergencyStop  bool
	tradesExecuted int
	dailyPnL       float64
	maxDrawdown    float64
	lastReset      time.Time
}

// New creates a Gate, filling zero policy fields with defaults.
func New(policy Policy) *Gate {
	def := DefaultPolicy()
	if policy.MaxPortfolioRiskPct <= 0 {
		policy.MaxPortfolioRiskPct = def.MaxPortfolioRiskPct
	}
	if policy.MaxPositionPct <= 0 {
		policy.MaxPositionPct = def.MaxPositionPct
	}
	if policy.MaxDailyTrades <= 0 {
		policy.MaxDailyTrades = def.MaxDailyTrades
	}
	if policy.MaxDailyLossPct <= 0 {
		policy.MaxDailyLossPct = def.MaxDailyLossPct
	}
	if policy.EmergencyStopPct <= 0 {
		policy.EmergencyStopPct = def.EmergencyStopPct
	}
	if policy.DefaultStopDistance <= 0 {
		policy.DefaultStopDistance = def.DefaultStopDistance
	}
	if policy.TradingHourStart == 0 && policy.TradingHourEnd == 0 {
		policy.TradingHourStart = def.TradingHourStart
		policy.TradingHourEnd = def.TradingHourEnd
	}
	g := &Gate{policy: policy, now: time.Now}
	g.lastReset = g.now()
	return g
}

// Validate scores a signal against the policy. Hard failures (missing
// fields, emergency stop, risk score above the block threshold) land in
// Blocks and invalidate the signal; soft findings land in Warnings and
// only raise the score.
func (g *Gate) Validate(sig domain.SignalCandidate) domain.Assessment {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyLocked()

	res := domain.Assessment{Valid: true}

	for _, f := range []struct {
		name    string
		missing bool
	}{
		{"symbol", sig.Symbol == ""},
		{"direction", sig.Direction == ""},
		{"confidence", sig.Confidence == 0},
		{"entry_price", sig.EntryPrice == 0},
	} {
		if f.missing {
			res.Valid = false
			res.Blocks = append(res.Blocks, fmt.Sprintf("Missing required field: %s", f.name))
		}
	}

	if sig.Confidence < 0.6 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Low confidence signal: %.2f", sig.Confidence))
		res.RiskScore += 20
	}

	if sig.Volatility == domain.VolatilityHigh {
		res.Warnings = append(res.Warnings, "High market volatility detected")
		res.RiskScore += 15
	}

	hour := g.now().Hour()
	if hour < g.policy.TradingHourStart || hour > g.policy.TradingHourEnd {
		res.Warnings = append(res.Warnings, "Trading outside normal market hours")
		res.RiskScore += 10
	}

	if g.emergencyStop {
		res.Valid = false
		res.Blocks = append(res.Blocks, "Emergency stop activated")
	}

	if res.RiskScore > blockScore {
		res.Valid = false
		res.Blocks = append(res.Blocks, fmt.Sprintf("Risk score too high: %d", res.RiskScore))
	}

	return res
}

// PositionSize computes the gate's own size cap for a signal,
// independent of the compound sizing. compound marks the trade as part
// of the compounding strategy and applies the extra conservatism factor.
func (g *Gate) PositionSize(sig domain.SignalCandidate, balance float64, compound bool) domain.Sizing {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyLocked()

	if g.emergencyStop {
		return domain.Sizing{RiskLevel: "EMERGENCY_STOP", Reason: "Emergency stop activated"}
	}
	if g.tradesExecuted >= g.policy.MaxDailyTrades {
		return domain.Sizing{
			RiskLevel: "MAX_TRADES_REACHED",
			Reason:    fmt.Sprintf("Daily trade limit reached: %d", g.policy.MaxDailyTrades),
		}
	}
	if g.dailyPnL <= -g.policy.MaxDailyLossPct*balance {
		return domain.Sizing{
			RiskLevel: "MAX_LOSS_REACHED",
			Reason:    fmt.Sprintf("Daily loss limit reached: %.0f%%", g.policy.MaxDailyLossPct*100),
		}
	}

	stopDistance := g.policy.DefaultStopDistance
	if sig.EntryPrice > 0 && sig.StopLoss > 0 {
		d := (sig.EntryPrice - sig.StopLoss) / sig.EntryPrice
		if d < 0 {
			d = -d
		}
		if d > 0 {
			stopDistance = d
		}
	}

	riskAmount := balance * g.policy.MaxPortfolioRiskPct
	size := riskAmount / stopDistance

	if max := balance * g.policy.MaxPositionPct; size > max {
		size = max
	}
	if compound {
		size *= 0.7
	}
	if g.policy.Preview && size > previewSizeCap {
		size = previewSizeCap
	}

	return domain.Sizing{
		Size:         size,
		RiskLevel:    domain.RiskLevelFor(size, balance),
		StopDistance: stopDistance,
		RiskAmount:   riskAmount,
		MaxLoss:      size * stopDistance,
		Approved:     true,
	}
}

// RecordOutcome folds a resolved trade into the daily accounting.
// A single closed loss beyond EmergencyStopPct of the balance trips the
// emergency stop.
func (g *Gate) RecordOutcome(positionID string, pnl, balance float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyLocked()

	g.tradesExecuted++
	g.dailyPnL += pnl

	if drawdown := -g.dailyPnL; drawdown > g.maxDrawdown {
		g.maxDrawdown = drawdown
	}

	if pnl < 0 && -pnl > g.policy.EmergencyStopPct*balance {
		g.triggerEmergencyStopLocked(fmt.Sprintf("large loss on %s: %.2f", positionID, pnl))
	}
}

// TriggerEmergencyStop latches the emergency stop with a reason.
func (g *Gate) TriggerEmergencyStop(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triggerEmergencyStopLocked(reason)
}

func (g *Gate) triggerEmergencyStopLocked(reason string) {
	if g.emergencyStop {
		return
	}
	g.emergencyStop = true
	slog.Error("EMERGENCY STOP TRIGGERED", "reason", reason)
}

// EmergencyStopped reports whether the latch is set.
func (g *Gate) EmergencyStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emergencyStop
}

// ResetEmergencyStop clears the latch when the token matches the
// configured reset token. An unset token disables resets entirely.
func (g *Gate) ResetEmergencyStop(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.policy.ResetToken == "" || token != g.policy.ResetToken {
		slog.Warn("invalid emergency reset authorization")
		return false
	}
	g.emergencyStop = false
	slog.Info("emergency stop reset with valid authorization")
	return true
}

// DailyPnL returns today's realized PnL.
func (g *Gate) DailyPnL() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyLocked()
	return g.dailyPnL
}

// TradesExecuted returns today's resolved trade count.
func (g *Gate) TradesExecuted() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyLocked()
	return g.tradesExecuted
}

// State exports the durable slice of the gate.
func (g *Gate) State() domain.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.RiskState{
		EmergencyStop:  g.emergencyStop,
		TradesExecuted: g.tradesExecuted,
		DailyPnL:       g.dailyPnL,
		MaxDrawdown:    g.maxDrawdown,
		LastReset:      g.lastReset,
	}
}

// Restore seeds the gate from persisted state. The emergency stop latch
// survives restarts; daily stats are dropped when the day is over.
func (g *Gate) Restore(s domain.RiskState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.emergencyStop = s.EmergencyStop
	g.tradesExecuted = s.TradesExecuted
	g.dailyPnL = s.DailyPnL
	g.maxDrawdown = s.MaxDrawdown
	if !s.LastReset.IsZero() {
		g.lastReset = s.LastReset
	}
	g.resetDailyLocked()
}

func (g *Gate) resetDailyLocked() {
	now := g.now()
	ny, nm, nd := now.Date()
	ly, lm, ld := g.lastReset.Date()
	if ny == ly && nm == lm && nd == ld {
		return
	}
	g.tradesExecuted = 0
	g.dailyPnL = 0
	g.maxDrawdown = 0
	g.lastReset = now
	slog.Info("daily risk stats reset")
}
