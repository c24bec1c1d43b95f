package analyzer

import (
	"log/slog"
	"sync"
	"time"

	"deltabot/internal/domain"
)

// Defaults tuned for micro-movement scalping on liquid pairs.
const (
	defaultDeltaThreshold   = 0.0005
	defaultVolumeMultiplier = 1.5
	defaultVolumeMinimum    = 0.7
	defaultSpreadMaximum    = 0.001
	defaultMomentumWindow   = 10
	defaultMinConfidence    = 0.75
	defaultStopLossPct      = 0.002
	defaultTakeProfitPct    = 0.005
	defaultMaxHold          = 5 * time.Minute
	defaultMaxErrors        = 5
)

// Config controls the entry criteria and protective levels.
type Config struct {
	DeltaThreshold   float64
	VolumeMultiplier float64
	VolumeMinimum    float64
	SpreadMaximum    float64
	MomentumWindow   int
	MinConfidence    float64
	StopLossPct      float64
	TakeProfitPct    float64
	MaxHold          time.Duration
	MaxErrors        int
}

// DefaultConfig returns production entry criteria.
func DefaultConfig() Config {
	return Config{
		DeltaThreshold:   defaultDeltaThreshold,
		VolumeMultiplier: defaultVolumeMultiplier,
		VolumeMinimum:    defaultVolumeMinimum,
		SpreadMaximum:    defaultSpreadMaximum,
		MomentumWindow:   defaultMomentumWindow,
		MinConfidence:    defaultMinConfidence,
		StopLossPct:      defaultStopLossPct,
		TakeProfitPct:    defaultTakeProfitPct,
		MaxHold:          defaultMaxHold,
		MaxErrors:        defaultMaxErrors,
	}
}

// Analyzer scores snapshots into signal candidates. It also keeps a
// non-fatal error counter; crossing MaxErrors is an escalation signal
// the orchestrator reads through ThresholdReached.
type Analyzer struct {
	cfg Config

	mu         sync.Mutex
	errorCount int
	lastError  time.Time
}

// New creates an Analyzer, filling zero config fields with defaults.
func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.DeltaThreshold <= 0 {
		cfg.DeltaThreshold = def.DeltaThreshold
	}
	if cfg.VolumeMultiplier <= 0 {
		cfg.VolumeMultiplier = def.VolumeMultiplier
	}
	if cfg.VolumeMinimum <= 0 {
		cfg.VolumeMinimum = def.VolumeMinimum
	}
	if cfg.SpreadMaximum <= 0 {
		cfg.SpreadMaximum = def.SpreadMaximum
	}
	if cfg.MomentumWindow <= 0 {
		cfg.MomentumWindow = def.MomentumWindow
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.StopLossPct <= 0 {
		cfg.StopLossPct = def.StopLossPct
	}
	if cfg.TakeProfitPct <= 0 {
		cfg.TakeProfitPct = def.TakeProfitPct
	}
	if cfg.MaxHold <= 0 {
		cfg.MaxHold = def.MaxHold
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	return &Analyzer{cfg: cfg}
}

// Analyze scores one snapshot. It returns the candidate and true when all
// entry conditions hold: delta above threshold, confirmed volume, tight
// spread and combined confidence at or above the minimum. Invalid
// snapshots count toward the error threshold.
func (a *Analyzer) Analyze(snap domain.MarketSnapshot) (domain.SignalCandidate, bool) {
	if !snap.Valid() {
		a.RecordError()
		slog.Debug("invalid snapshot", "symbol", snap.Symbol, "price", snap.Price)
		return domain.SignalCandidate{}, false
	}

	spread := snap.Spread()
	delta := snap.PriceChangePct
	if delta < 0 {
		delta = -delta
	}
	momentum := domain.Momentum(snap.PriceHistory, a.cfg.MomentumWindow)
	volumeScore := domain.VolumeScore(snap.Volume, snap.AvgVolume, a.cfg.VolumeMultiplier)

	deltaValid := delta >= a.cfg.DeltaThreshold
	volumeValid := volumeScore >= a.cfg.VolumeMinimum
	spreadValid := spread <= a.cfg.SpreadMaximum

	confidence := domain.SignalConfidence(deltaValid, momentum, volumeScore, spread)

	dir := domain.DirectionShort
	if momentum > 0.5 {
		dir = domain.DirectionLong
	}
	stop, profit := domain.ProtectiveLevels(snap.Price, dir, a.cfg.StopLossPct, a.cfg.TakeProfitPct)

	candidate := domain.SignalCandidate{
		Symbol:      snap.Symbol,
		Direction:   dir,
		Confidence:  confidence,
		EntryPrice:  snap.Price,
		StopLoss:    stop,
		TakeProfit:  profit,
		Momentum:    momentum,
		VolumeScore: volumeScore,
		Spread:      spread,
		PriceDelta:  delta,
		Volatility:  snap.Volatility,
		CreatedAt:   snap.Timestamp,
	}

	enter := confidence >= a.cfg.MinConfidence && deltaValid && volumeValid && spreadValid
	return candidate, enter
}

// MaxHold returns the configured maximum position hold time.
func (a *Analyzer) MaxHold() time.Duration {
	return a.cfg.MaxHold
}

// MinConfidence returns the entry confidence floor. Sentiment fusion can
// push a passing signal back below it.
func (a *Analyzer) MinConfidence() float64 {
	return a.cfg.MinConfidence
}

// RecordError bumps the non-fatal error counter.
func (a *Analyzer) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCount++
	a.lastError = time.Now()
	if a.errorCount >= a.cfg.MaxErrors {
		slog.Warn("analyzer error threshold reached", "errors", a.errorCount)
	}
}

// ErrorCount returns the current error counter.
func (a *Analyzer) ErrorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errorCount
}

// ThresholdReached reports whether errors crossed the configured maximum.
func (a *Analyzer) ThresholdReached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errorCount >= a.cfg.MaxErrors
}

// RestoreErrorCount seeds the counter from persisted state.
func (a *Analyzer) RestoreErrorCount(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCount = n
}
