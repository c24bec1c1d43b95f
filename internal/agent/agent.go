// Package agent wires the analyzer, risk gate and compound controller
// into the unattended decision loop: consume snapshots, decide, execute
// through the executor port and persist after every mutating event.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"deltabot/internal/analyzer"
	"deltabot/internal/compound"
	"deltabot/internal/domain"
	"deltabot/internal/metrics"
	"deltabot/internal/ports"
	"deltabot/internal/risk"
)

const (
	defaultExecTimeout    = 10 * time.Second
	defaultStatusInterval = 60 * time.Second
	defaultPersistRetries = 3
	defaultPersistBackoff = 250 * time.Millisecond
	defaultSentimentWait  = 2 * time.Second

	// single built-in strategy; the weights table is sized for more
	strategyDeltaScalping = "delta_scalping"
)

// Config controls the orchestrator loop.
type Config struct {
	InitialBalance  float64
	SentimentWeight float64
	ExecTimeout     time.Duration
	StatusInterval  time.Duration
	PersistRetries  int
	PersistBackoff  time.Duration
	Preview         bool
}

// DefaultConfig returns sensible loop settings.
func DefaultConfig() Config {
	return Config{
		InitialBalance:  100,
		SentimentWeight: 0.3,
		ExecTimeout:     defaultExecTimeout,
		StatusInterval:  defaultStatusInterval,
		PersistRetries:  defaultPersistRetries,
		PersistBackoff:  defaultPersistBackoff,
		Preview:         true,
	}
}

// Deps are the orchestrator's injected collaborators. Sentiment is
// optional; everything else is required.
type Deps struct {
	Feed      ports.MarketFeed
	Executor  ports.TradeExecutor
	Store     ports.StateStore
	Notifier  ports.Notifier
	Sentiment ports.SentimentProvider
	Analyzer  *analyzer.Analyzer
	Gate      *risk.Gate
	Compound  *compound.Controller
}

// Orchestrator is the agent's decision loop and mode state machine.
type Orchestrator struct {
	cfg       Config
	feed      ports.MarketFeed
	executor  ports.TradeExecutor
	store     ports.StateStore
	notifier  ports.Notifier
	sentiment ports.SentimentProvider
	analyzer  *analyzer.Analyzer
	gate      *risk.Gate
	compound  *compound.Controller

	mu           sync.Mutex
	mode         domain.AgentMode
	prevMode     domain.AgentMode
	pauseReasons []string
	balance      float64
	positions    map[string]*domain.TradePosition
	blocked      map[string]string // symbol → unresolved position ID
	weights      *domain.StrategyWeights
	closedTrades int
	wonTrades    int
	startedAt    time.Time

	slotMu  sync.Mutex
	busy    map[string]bool
	pending map[string]domain.MarketSnapshot
}

// New creates an Orchestrator in INITIALIZING mode, filling zero config
// fields with defaults.
func New(cfg Config, deps Deps) *Orchestrator {
	def := DefaultConfig()
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = def.InitialBalance
	}
	if cfg.SentimentWeight <= 0 {
		cfg.SentimentWeight = def.SentimentWeight
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = def.ExecTimeout
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = def.StatusInterval
	}
	if cfg.PersistRetries <= 0 {
		cfg.PersistRetries = def.PersistRetries
	}
	if cfg.PersistBackoff <= 0 {
		cfg.PersistBackoff = def.PersistBackoff
	}

	return &Orchestrator{
		cfg:       cfg,
		feed:      deps.Feed,
		executor:  deps.Executor,
		store:     deps.Store,
		notifier:  deps.Notifier,
		sentiment: deps.Sentiment,
		analyzer:  deps.Analyzer,
		gate:      deps.Gate,
		compound:  deps.Compound,
		mode:      domain.ModeInitializing,
		balance:   cfg.InitialBalance,
		positions: make(map[string]*domain.TradePosition),
		blocked:   make(map[string]string),
		weights:   domain.NewStrategyWeights(strategyDeltaScalping),
		busy:      make(map[string]bool),
		pending:   make(map[string]domain.MarketSnapshot),
	}
}

// Init restores persisted state and moves the agent to READY.
func (o *Orchestrator) Init(ctx context.Context) error {
	state, err := o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("agent.Init: load state: %w", err)
	}
	if state != nil {
		o.restore(*state)
	}

	o.mu.Lock()
	if o.mode == domain.ModeInitializing {
		o.mode = domain.ModeReady
	}
	o.startedAt = time.Now()
	mode := o.mode
	o.mu.Unlock()

	metrics.Balance.Set(o.CurrentBalance())
	slog.Info("agent initialized",
		"mode", mode,
		"balance", o.CurrentBalance(),
		"preview", o.cfg.Preview,
	)
	return nil
}

// Run consumes the feed until the context is cancelled or the feed is
// exhausted. Snapshots for distinct symbols are processed concurrently;
// per symbol, decisions are serialized and a newer snapshot replaces any
// waiting one.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Init(ctx); err != nil {
		return err
	}

	snaps, err := o.feed.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("agent.Run: start feed: %w", err)
	}

	statusTicker := time.NewTicker(o.cfg.StatusInterval)
	defer statusTicker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			o.persist(context.Background())
			slog.Info("agent stopped")
			return nil

		case snap, ok := <-snaps:
			if !ok {
				wg.Wait()
				o.persist(context.Background())
				slog.Info("feed exhausted, agent stopped")
				return nil
			}
			o.dispatch(ctx, &wg, snap)

		case <-statusTicker.C:
			if err := o.notifier.NotifyStatus(ctx, o.Status()); err != nil {
				slog.Warn("status notifier error", "err", err)
			}
		}
	}
}

// dispatch hands a snapshot to the per-symbol worker. One decision is in
// flight per symbol; a newer snapshot for a busy symbol replaces any
// waiting snapshot, it never queues behind it.
func (o *Orchestrator) dispatch(ctx context.Context, wg *sync.WaitGroup, snap domain.MarketSnapshot) {
	o.slotMu.Lock()
	if o.busy[snap.Symbol] {
		o.pending[snap.Symbol] = snap
		o.slotMu.Unlock()
		return
	}
	o.busy[snap.Symbol] = true
	o.slotMu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			res := o.ProcessTick(ctx, snap)
			if err := o.notifier.NotifyDecision(ctx, res); err != nil {
				slog.Warn("decision notifier error", "err", err)
			}

			o.slotMu.Lock()
			next, ok := o.pending[snap.Symbol]
			if ok {
				delete(o.pending, snap.Symbol)
				o.slotMu.Unlock()
				snap = next
				continue
			}
			o.busy[snap.Symbol] = false
			o.slotMu.Unlock()
			return
		}
	}()
}

// Mode returns the current lifecycle mode.
func (o *Orchestrator) Mode() domain.AgentMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// CurrentBalance returns the tracked account balance.
func (o *Orchestrator) CurrentBalance() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.balance
}

// ResetEmergencyStop clears an emergency stop when the token matches the
// gate's configured reset token, restoring the mode held before the
// stop. Returns false on bad authorization.
func (o *Orchestrator) ResetEmergencyStop(ctx context.Context, token string) bool {
	if !o.gate.ResetEmergencyStop(token) {
		return false
	}

	o.mu.Lock()
	if o.mode == domain.ModeEmergencyStopped {
		restored := o.prevMode
		if restored == "" || restored == domain.ModeEmergencyStopped {
			restored = domain.ModeReady
		}
		o.mode = restored
		o.pauseReasons = nil
	}
	mode := o.mode
	o.mu.Unlock()

	o.persist(ctx)
	slog.Info("emergency stop cleared", "mode", mode)
	return true
}

// Status builds the operational report.
func (o *Orchestrator) Status() domain.StatusReport {
	o.mu.Lock()
	balance := o.balance
	mode := o.mode
	reasons := slices.Clone(o.pauseReasons)
	open := len(o.positions)
	closed := o.closedTrades
	won := o.wonTrades
	weights := o.weights.Snapshot()
	started := o.startedAt
	o.mu.Unlock()

	winRate := 0.0
	if closed > 0 {
		winRate = float64(won) / float64(closed) * 100
	}
	uptime := time.Duration(0)
	if !started.IsZero() {
		uptime = time.Since(started)
	}

	return domain.StatusReport{
		Mode:          mode,
		PauseReasons:  reasons,
		Uptime:        uptime,
		Balance:       balance,
		DailyPnL:      o.gate.DailyPnL(),
		DailyTrades:   o.compound.DailyTrades(),
		OpenPositions: open,
		ClosedTrades:  closed,
		WinRate:       winRate,
		Cycle:         o.compound.Progress(balance),
		Weights:       weights,
		ErrorCount:    o.analyzer.ErrorCount(),
		Preview:       o.cfg.Preview,
		GeneratedAt:   time.Now(),
	}
}

// ─── Mode transitions ───

func (o *Orchestrator) enterPause(reasons []string) {
	o.mu.Lock()
	if o.mode == domain.ModeActive || o.mode == domain.ModeReady {
		o.prevMode = o.mode
	}
	o.mode = domain.ModePaused
	o.pauseReasons = reasons
	o.mu.Unlock()
	slog.Warn("agent paused", "reasons", reasons)
}

func (o *Orchestrator) enterEmergencyStop(reason string) {
	o.gate.TriggerEmergencyStop(reason)

	o.mu.Lock()
	if o.mode != domain.ModeEmergencyStopped {
		o.prevMode = o.mode
		o.mode = domain.ModeEmergencyStopped
		o.pauseReasons = []string{reason}
		metrics.EmergencyStops.Inc()
	}
	o.mu.Unlock()
	slog.Error("agent emergency stopped", "reason", reason)
}

func (o *Orchestrator) resume() {
	o.mu.Lock()
	o.mode = domain.ModeActive
	o.pauseReasons = nil
	o.mu.Unlock()
	slog.Info("agent resumed")
}

// ─── Persistence ───

// persist saves the durable state, retrying with backoff. When every
// attempt fails the agent forces itself into PAUSED so it stops making
// decisions it cannot record.
func (o *Orchestrator) persist(ctx context.Context) error {
	state := o.buildState()

	var err error
	for attempt := 0; attempt <= o.cfg.PersistRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.cfg.PersistBackoff * time.Duration(attempt)):
			}
		}
		if err = o.store.Save(ctx, state); err == nil {
			return nil
		}
		slog.Warn("state save failed", "attempt", attempt+1, "err", err)
	}

	o.enterPause([]string{domain.PausePersistenceFailure})
	return fmt.Errorf("agent.persist: %w", err)
}

func (o *Orchestrator) buildState() domain.AgentState {
	o.mu.Lock()
	defer o.mu.Unlock()

	positions := make([]domain.TradePosition, 0, len(o.positions))
	for _, p := range o.positions {
		positions = append(positions, *p)
	}

	return domain.AgentState{
		Mode:         o.mode,
		PauseReasons: slices.Clone(o.pauseReasons),
		Balance:      o.balance,
		Compound:     o.compound.State(),
		Risk:         o.gate.State(),
		Weights:      o.weights,
		Positions:    positions,
		ErrorCount:   o.analyzer.ErrorCount(),
		UpdatedAt:    time.Now(),
	}
}

func (o *Orchestrator) restore(state domain.AgentState) {
	o.compound.Restore(state.Compound)
	o.gate.Restore(state.Risk)
	o.analyzer.RestoreErrorCount(state.ErrorCount)

	o.mu.Lock()
	defer o.mu.Unlock()

	if state.Balance > 0 {
		o.balance = state.Balance
	}
	if state.Weights != nil && len(state.Weights.Weights) > 0 {
		o.weights = state.Weights
	}
	for _, p := range state.Positions {
		pos := p
		o.positions[pos.ID] = &pos
		if pos.Status == domain.PositionUnresolved {
			o.blocked[pos.Symbol] = pos.ID
		}
	}

	// terminal/paused modes survive restarts; anything else starts READY
	switch state.Mode {
	case domain.ModeEmergencyStopped:
		o.mode = domain.ModeEmergencyStopped
		o.pauseReasons = slices.Clone(state.PauseReasons)
	case domain.ModePaused:
		o.mode = domain.ModePaused
		o.pauseReasons = slices.Clone(state.PauseReasons)
	default:
		o.mode = domain.ModeReady
	}

	slog.Info("state restored",
		"mode", o.mode,
		"balance", o.balance,
		"open_positions", len(o.positions),
	)
}
