// Package compound implements the gain-compounding position sizer:
// balance grows through explicit cycles, risk scales up on win streaks
// and down on loss streaks, and every completed cycle raises the target.
package compound

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"deltabot/internal/domain"
)

const (
	defaultInitialCapital = 100.0
	defaultTargetCapital  = 500.0
	defaultBaseRiskPct    = 0.10
	defaultMaxRiskPct     = 0.25
	defaultMaxDailyTrades = 20

	minPositionSize = 1.0
	excessiveLosses = 5
	drawdownFactor  = 0.5 // pause below this fraction of initial capital
)

// Config are the compounding parameters.
type Config struct {
	InitialCapital float64
	TargetCapital  float64
	BaseRiskPct    float64
	MaxRiskPct     float64
	MaxDailyTrades int
}

// DefaultConfig returns the standard 100→500 compounding run.
func DefaultConfig() Config {
	return Config{
		InitialCapital: defaultInitialCapital,
		TargetCapital:  defaultTargetCapital,
		BaseRiskPct:    defaultBaseRiskPct,
		MaxRiskPct:     defaultMaxRiskPct,
		MaxDailyTrades: defaultMaxDailyTrades,
	}
}

// Sizing is the controller's position size decision.
type Sizing struct {
	Size           float64
	Reason         string
	ConfidenceMult float64
	ProgressMult   float64
	TradesLeft     int
}

// Outcome reports the state transition after one trade result.
type Outcome struct {
	Win               bool
	ConsecutiveWins   int
	ConsecutiveLosses int
	RiskPct           float64
	DailyTrades       int
	Cycle             domain.CycleResult
}

// Performance is the aggregate compound performance report.
type Performance struct {
	TotalCycles     int
	TotalCompounded float64
	AvgCycleGain    float64
	AvgCycleGainPct float64
	CyclesToTarget  int
	Trend           string
}

// Controller tracks risk scaling and compound cycles. Safe for
// concurrent use.
type Controller struct {
	cfg Config
	now func() time.Time

	mu                sync.Mutex
	currentRiskPct    float64
	consecutiveWins   int
	consecutiveLosses int
	dailyTradeCount   int
	lastResetDate     time.Time
	cycleStart        float64
	cycleTarget       float64
	totalCompounded   float64
	cycles            []domain.CycleRecord
}

// New creates a Controller, filling zero config fields with defaults.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = def.InitialCapital
	}
	if cfg.TargetCapital <= 0 {
		cfg.TargetCapital = def.TargetCapital
	}
	if cfg.BaseRiskPct <= 0 {
		cfg.BaseRiskPct = def.BaseRiskPct
	}
	if cfg.MaxRiskPct <= 0 {
		cfg.MaxRiskPct = def.MaxRiskPct
	}
	if cfg.MaxDailyTrades <= 0 {
		cfg.MaxDailyTrades = def.MaxDailyTrades
	}
	c := &Controller{
		cfg:            cfg,
		now:            time.Now,
		currentRiskPct: cfg.BaseRiskPct,
		cycleStart:     cfg.InitialCapital,
	}
	c.lastResetDate = c.now()
	c.cycleTarget = cfg.InitialCapital * (1 + domain.NextGainPct(0))
	return c
}

// PositionSize sizes a trade from the balance and signal confidence.
// Zero size always carries a reason.
func (c *Controller) PositionSize(balance, confidence float64) Sizing {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetDailyLocked()

	if c.dailyTradeCount >= c.cfg.MaxDailyTrades {
		return Sizing{Reason: domain.PauseDailyLimit, TradesLeft: 0}
	}

	base := balance * c.currentRiskPct

	confMult := confidence / 0.75
	if confMult < 0.5 {
		confMult = 0.5
	}
	if confMult > 1.5 {
		confMult = 1.5
	}

	progress := 0.0
	if span := c.cycleTarget - c.cycleStart; span > 0 {
		progress = (balance - c.cycleStart) / span
	}
	progressMult := 1.0 + progress*0.2

	size := base * confMult * progressMult
	if max := balance * c.cfg.MaxRiskPct; size > max {
		size = max
	}

	if size < minPositionSize {
		return Sizing{
			Reason:         "position_too_small",
			ConfidenceMult: confMult,
			ProgressMult:   progressMult,
			TradesLeft:     c.cfg.MaxDailyTrades - c.dailyTradeCount,
		}
	}

	return Sizing{
		Size:           size,
		ConfidenceMult: confMult,
		ProgressMult:   progressMult,
		TradesLeft:     c.cfg.MaxDailyTrades - c.dailyTradeCount,
	}
}

// ProcessTradeResult folds one closed trade into the risk scaling and
// checks cycle completion against the new balance.
//
// Wins compound: risk grows 1% per consecutive win up to 5%, capped at
// MaxRiskPct. Losses preserve: risk shrinks 10% per consecutive loss up
// to 30%, floored at half the base risk.
func (c *Controller) ProcessTradeResult(pnl, balance float64) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetDailyLocked()

	c.dailyTradeCount++

	win := pnl > 0
	if win {
		c.consecutiveWins++
		c.consecutiveLosses = 0

		increase := float64(c.consecutiveWins) * 0.01
		if increase > 0.05 {
			increase = 0.05
		}
		c.currentRiskPct *= 1 + increase
		if c.currentRiskPct > c.cfg.MaxRiskPct {
			c.currentRiskPct = c.cfg.MaxRiskPct
		}
	} else {
		c.consecutiveLosses++
		c.consecutiveWins = 0

		reduction := float64(c.consecutiveLosses) * 0.1
		if reduction > 0.3 {
			reduction = 0.3
		}
		c.currentRiskPct *= 1 - reduction
		if floor := c.cfg.BaseRiskPct * 0.5; c.currentRiskPct < floor {
			c.currentRiskPct = floor
		}
	}

	cycle := c.checkCycleLocked(balance)

	return Outcome{
		Win:               win,
		ConsecutiveWins:   c.consecutiveWins,
		ConsecutiveLosses: c.consecutiveLosses,
		RiskPct:           c.currentRiskPct,
		DailyTrades:       c.dailyTradeCount,
		Cycle:             cycle,
	}
}

// CheckCycle evaluates cycle completion for the given balance without
// recording a trade.
func (c *Controller) CheckCycle(balance float64) domain.CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkCycleLocked(balance)
}

func (c *Controller) checkCycleLocked(balance float64) domain.CycleResult {
	if balance < c.cycleTarget {
		progress := 0.0
		if span := c.cycleTarget - c.cycleStart; span > 0 {
			progress = (balance - c.cycleStart) / span
		}
		return domain.CycleResult{Progress: progress}
	}

	gain := balance - c.cycleStart
	record := domain.CycleRecord{
		Number:        len(c.cycles) + 1,
		StartBalance:  c.cycleStart,
		EndBalance:    balance,
		TargetBalance: c.cycleTarget,
		GainAmount:    gain,
		GainPct:       gain / c.cycleStart * 100,
		TradesInCycle: c.dailyTradeCount,
		CompletedAt:   c.now(),
	}
	c.cycles = append(c.cycles, record)
	c.totalCompounded += gain

	c.cycleStart = balance
	c.cycleTarget = balance * (1 + domain.NextGainPct(len(c.cycles)))

	// fresh cycle, fresh risk
	c.currentRiskPct = c.cfg.BaseRiskPct
	c.consecutiveWins = 0
	c.consecutiveLosses = 0

	slog.Info("compound cycle complete",
		"cycle", record.Number,
		"gain", record.GainAmount,
		"gain_pct", record.GainPct,
		"new_target", c.cycleTarget,
	)

	return domain.CycleResult{
		Complete:      true,
		Completed:     &record,
		NewTarget:     c.cycleTarget,
		Progress:      1,
		TargetCapital: balance >= c.cfg.TargetCapital,
	}
}

// ShouldPause reports whether trading should pause and why. Reasons are
// the stable identifiers from the domain package.
func (c *Controller) ShouldPause(balance float64) (bool, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetDailyLocked()

	var reasons []string
	if c.dailyTradeCount >= c.cfg.MaxDailyTrades {
		reasons = append(reasons, domain.PauseDailyLimit)
	}
	if c.consecutiveLosses >= excessiveLosses {
		reasons = append(reasons, domain.PauseExcessiveLosses)
	}
	if balance <= c.cfg.InitialCapital*drawdownFactor {
		reasons = append(reasons, domain.PauseMajorDrawdown)
	}
	if balance >= c.cfg.TargetCapital {
		reasons = append(reasons, domain.PauseTargetReached)
	}
	return len(reasons) > 0, reasons
}

// Performance summarizes completed cycles.
func (c *Controller) Performance() Performance {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Performance{
		TotalCycles:     len(c.cycles),
		TotalCompounded: c.totalCompounded,
		Trend:           domain.PerformanceTrend(c.cycles),
	}
	if len(c.cycles) == 0 {
		return p
	}

	var gain, gainPct float64
	for _, cy := range c.cycles {
		gain += cy.GainAmount
		gainPct += cy.GainPct
	}
	p.AvgCycleGain = gain / float64(len(c.cycles))
	p.AvgCycleGainPct = gainPct / float64(len(c.cycles))

	if p.AvgCycleGain > 0 {
		remaining := c.cfg.TargetCapital - (c.cfg.InitialCapital + gain)
		if remaining <= 0 {
			p.CyclesToTarget = 0
		} else {
			p.CyclesToTarget = int(math.Ceil(remaining / p.AvgCycleGain))
			if p.CyclesToTarget < 1 {
				p.CyclesToTarget = 1
			}
		}
	}
	return p
}

// Progress returns the current cycle progress for status reporting.
func (c *Controller) Progress(balance float64) domain.CycleProgress {
	c.mu.Lock()
	defer c.mu.Unlock()

	pct := 0.0
	if span := c.cycleTarget - c.cycleStart; span > 0 {
		pct = (balance - c.cycleStart) / span * 100
	}
	return domain.CycleProgress{
		Start:       c.cycleStart,
		Target:      c.cycleTarget,
		ProgressPct: pct,
		Completed:   len(c.cycles),
	}
}

// DailyTrades returns today's trade count.
func (c *Controller) DailyTrades() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetDailyLocked()
	return c.dailyTradeCount
}

// State exports the durable slice of the controller.
func (c *Controller) State() domain.CompoundState {
	c.mu.Lock()
	defer c.mu.Unlock()
	cycles := make([]domain.CycleRecord, len(c.cycles))
	copy(cycles, c.cycles)
	return domain.CompoundState{
		CurrentRiskPct:    c.currentRiskPct,
		ConsecutiveWins:   c.consecutiveWins,
		ConsecutiveLosses: c.consecutiveLosses,
		DailyTradeCount:   c.dailyTradeCount,
		LastResetDate:     c.lastResetDate,
		CycleStart:        c.cycleStart,
		CycleTarget:       c.cycleTarget,
		TotalCompounded:   c.totalCompounded,
		Cycles:            cycles,
	}
}

// Restore seeds the controller from persisted state. The daily counter
// is dropped when the persisted day is over.
func (c *Controller) Restore(s domain.CompoundState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.CurrentRiskPct > 0 {
		c.currentRiskPct = s.CurrentRiskPct
	}
	c.consecutiveWins = s.ConsecutiveWins
	c.consecutiveLosses = s.ConsecutiveLosses
	c.dailyTradeCount = s.DailyTradeCount
	if !s.LastResetDate.IsZero() {
		c.lastResetDate = s.LastResetDate
	}
	if s.CycleStart > 0 {
		c.cycleStart = s.CycleStart
	}
	if s.CycleTarget > 0 {
		c.cycleTarget = s.CycleTarget
	}
	c.totalCompounded = s.TotalCompounded
	c.cycles = append([]domain.CycleRecord(nil), s.Cycles...)

	c.resetDailyLocked()
}

// resetDailyLocked drops the daily counter when the calendar day rolls
// over. Called lazily from every entry point; the caller holds the lock.
func (c *Controller) resetDailyLocked() {
	now := c.now()
	if sameDay(now, c.lastResetDate) {
		return
	}
	c.dailyTradeCount = 0
	c.lastResetDate = now
	slog.Info("daily trade counter reset")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
