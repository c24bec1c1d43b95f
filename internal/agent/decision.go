package agent

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"deltabot/internal/domain"
	"deltabot/internal/metrics"
)

// ProcessTick runs the full decision pipeline for one snapshot:
// reconcile → monitor exits → threshold checks → analyze → sentiment →
// risk validation → sizing → execution. Every path returns a tagged
// TickResult; there is no silent-failure exit.
func (o *Orchestrator) ProcessTick(ctx context.Context, snap domain.MarketSnapshot) domain.TickResult {
	start := time.Now()
	res := o.processTick(ctx, snap)
	res.Symbol = snap.Symbol
	res.Duration = time.Since(start)

	metrics.TicksTotal.WithLabelValues(string(res.Action)).Inc()
	metrics.DecisionDuration.Observe(res.Duration.Seconds())
	return res
}

func (o *Orchestrator) processTick(ctx context.Context, snap domain.MarketSnapshot) domain.TickResult {
	switch o.Mode() {
	case domain.ModeInitializing:
		return domain.TickResult{Action: domain.TickSkip, Reason: "not_ready"}

	case domain.ModeEmergencyStopped:
		return domain.TickResult{Action: domain.TickSkip, Reason: "emergency_stopped"}

	case domain.ModeReady:
		if !snap.Valid() {
			o.analyzer.RecordError()
			metrics.AnalyzerErrors.Inc()
			return domain.TickResult{Action: domain.TickSkip, Reason: "invalid_snapshot"}
		}
		o.resume()
		slog.Info("first valid tick, agent active", "symbol", snap.Symbol)

	case domain.ModePaused:
		reasons := o.reevaluatePause(ctx)
		if len(reasons) > 0 {
			o.mu.Lock()
			o.pauseReasons = reasons
			o.mu.Unlock()
			return domain.TickResult{Action: domain.TickPause, Reason: reasons[0]}
		}
		o.resume()
	}

	// unresolved execution for this symbol blocks new entries
	if posID, blocked := o.blockedPosition(snap.Symbol); blocked {
		if !o.reconcile(ctx, snap.Symbol, posID) {
			return domain.TickResult{Action: domain.TickSkip, Reason: "awaiting_reconciliation"}
		}
	}

	closed := o.checkExits(snap)
	if len(closed) > 0 {
		o.persist(ctx)
	}

	if o.gate.EmergencyStopped() {
		o.enterEmergencyStop("emergency_stop")
		o.persist(ctx)
		return domain.TickResult{Action: domain.TickPause, Reason: "emergency_stop", Closed: closed}
	}

	if o.analyzer.ThresholdReached() {
		o.enterEmergencyStop("error_threshold")
		o.persist(ctx)
		return domain.TickResult{Action: domain.TickPause, Reason: "error_threshold", Closed: closed}
	}

	balance := o.CurrentBalance()
	if pause, reasons := o.compound.ShouldPause(balance); pause {
		o.enterPause(reasons)
		o.persist(ctx)
		return domain.TickResult{Action: domain.TickPause, Reason: reasons[0], Closed: closed}
	}

	sig, enter := o.analyzer.Analyze(snap)
	if !enter {
		return domain.TickResult{Action: domain.TickSkip, Reason: "no_signal", Closed: closed}
	}

	o.fuseSentiment(ctx, &sig)
	if sig.Confidence < o.analyzer.MinConfidence() {
		return domain.TickResult{Action: domain.TickSkip, Reason: "sentiment_veto", Signal: &sig, Closed: closed}
	}

	if assessment := o.gate.Validate(sig); !assessment.Valid {
		return domain.TickResult{Action: domain.TickSkip, Reason: assessment.Blocks[0], Signal: &sig, Closed: closed}
	}

	compoundSizing := o.compound.PositionSize(balance, sig.Confidence)
	if compoundSizing.Size <= 0 {
		return domain.TickResult{Action: domain.TickSkip, Reason: compoundSizing.Reason, Signal: &sig, Closed: closed}
	}

	gateSizing := o.gate.PositionSize(sig, balance, true)
	if !gateSizing.Approved {
		return domain.TickResult{Action: domain.TickSkip, Reason: gateSizing.Reason, Signal: &sig, Closed: closed}
	}

	size := compoundSizing.Size
	if gateSizing.Size < size {
		size = gateSizing.Size
	}
	if size < 1 {
		return domain.TickResult{Action: domain.TickSkip, Reason: "position_too_small", Signal: &sig, Closed: closed}
	}

	return o.openPosition(ctx, sig, size, closed)
}

// ─── Position monitoring ───

// checkExits closes open positions for the snapshot's symbol that hit
// stop-loss, take-profit or max-hold, and folds the outcomes into the
// balance, gate, compound controller and strategy weights.
func (o *Orchestrator) checkExits(snap domain.MarketSnapshot) []domain.TradePosition {
	now := snap.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	// Close and unregister under the lock so no persist or status scan
	// ever observes a half-written position. Outcomes fold from the
	// detached copies.
	o.mu.Lock()
	var closed []domain.TradePosition
	for _, p := range o.positions {
		if p.Symbol != snap.Symbol || p.Status != domain.PositionActive {
			continue
		}
		reason, exit := p.CheckExit(snap.Price, now)
		if !exit {
			continue
		}
		p.Close(snap.Price, reason, now)
		delete(o.positions, p.ID)
		closed = append(closed, *p)
	}
	o.mu.Unlock()

	for i := range closed {
		p := &closed[i]
		o.applyOutcome(p, p.PnL)
		slog.Info("position closed",
			"position", p.ID,
			"symbol", p.Symbol,
			"reason", p.ExitReason,
			"pnl", p.PnL,
		)
	}
	return closed
}

// applyOutcome folds one resolved trade into every stateful component.
// The position must already be unregistered from the open set.
func (o *Orchestrator) applyOutcome(pos *domain.TradePosition, pnl float64) {
	o.mu.Lock()
	o.balance += pnl
	balance := o.balance
	o.closedTrades++
	if pnl > 0 {
		o.wonTrades++
	}
	o.weights.Record(pos.Strategy, pnl, time.Now())
	openCount := len(o.positions)
	o.mu.Unlock()

	o.gate.RecordOutcome(pos.ID, pnl, balance)
	out := o.compound.ProcessTradeResult(pnl, balance)

	result := "loss"
	if pnl > 0 {
		result = "win"
	}
	metrics.TradesTotal.WithLabelValues(result).Inc()
	metrics.Balance.Set(balance)
	metrics.OpenPositions.Set(float64(openCount))
	metrics.DailyPnL.Set(o.gate.DailyPnL())
	if out.Cycle.Complete {
		metrics.CyclesCompleted.Inc()
	}
}

// ─── Execution ───

func (o *Orchestrator) openPosition(ctx context.Context, sig domain.SignalCandidate, size float64, closed []domain.TradePosition) domain.TickResult {
	now := time.Now()
	pos := &domain.TradePosition{
		ID:           uuid.NewString(),
		Symbol:       sig.Symbol,
		Side:         sig.Direction,
		EntryPrice:   sig.EntryPrice,
		Size:         size,
		StopLoss:     sig.StopLoss,
		TakeProfit:   sig.TakeProfit,
		Confidence:   sig.Confidence,
		Strategy:     strategyDeltaScalping,
		OpenedAt:     now,
		MaxHoldUntil: now.Add(o.analyzer.MaxHold()),
		Status:       domain.PositionActive,
	}

	req := domain.ExecutionRequest{
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		Size:       pos.Size,
		StopLoss:   pos.StopLoss,
		TakeProfit: pos.TakeProfit,
		Confidence: pos.Confidence,
	}

	execCtx, cancel := context.WithTimeout(ctx, o.cfg.ExecTimeout)
	defer cancel()

	result, err := o.executor.Execute(execCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return o.markUnresolved(ctx, pos, closed)
		}
		o.analyzer.RecordError()
		metrics.AnalyzerErrors.Inc()
		slog.Error("execution failed", "position", pos.ID, "err", err)
		return domain.TickResult{Action: domain.TickSkip, Reason: "execution_failed", Signal: &sig, Closed: closed}
	}
	if !result.Accepted {
		return domain.TickResult{Action: domain.TickSkip, Reason: result.Reason, Signal: &sig, Closed: closed}
	}

	if result.FillPrice > 0 {
		pos.EntryPrice = result.FillPrice
	}

	o.mu.Lock()
	o.positions[pos.ID] = pos
	openCount := len(o.positions)
	o.mu.Unlock()
	metrics.OpenPositions.Set(float64(openCount))

	o.persist(ctx)

	slog.Info("position opened",
		"position", pos.ID,
		"symbol", pos.Symbol,
		"side", pos.Side,
		"size", pos.Size,
		"entry", pos.EntryPrice,
		"confidence", pos.Confidence,
	)
	return domain.TickResult{Action: domain.TickExecute, Signal: &sig, Position: pos, Closed: closed}
}

// markUnresolved records an execution timeout: the trade counts as a
// failure for risk accounting, the position stays UNRESOLVED and the
// symbol is blocked until reconciliation settles it.
func (o *Orchestrator) markUnresolved(ctx context.Context, pos *domain.TradePosition, closed []domain.TradePosition) domain.TickResult {
	pos.Status = domain.PositionUnresolved

	o.mu.Lock()
	o.positions[pos.ID] = pos
	o.blocked[pos.Symbol] = pos.ID
	balance := o.balance
	o.mu.Unlock()

	o.gate.RecordOutcome(pos.ID, 0, balance)
	o.compound.ProcessTradeResult(0, balance)
	metrics.TradesTotal.WithLabelValues("loss").Inc()

	o.persist(ctx)

	slog.Warn("execution timed out, symbol blocked until reconciliation",
		"position", pos.ID,
		"symbol", pos.Symbol,
	)
	return domain.TickResult{Action: domain.TickSkip, Reason: "execution_timeout", Position: pos, Closed: closed}
}

// reconcile settles an unresolved position against the executor's view.
// A position the executor reports closed contributes its PnL to the
// balance; one the executor never saw is written off flat. Returns true
// once the symbol is unblocked.
func (o *Orchestrator) reconcile(ctx context.Context, symbol, positionID string) bool {
	got, ok, err := o.executor.LookupPosition(ctx, positionID)
	if err != nil {
		slog.Warn("reconciliation lookup failed", "position", positionID, "err", err)
		return false
	}

	o.mu.Lock()
	pos, tracked := o.positions[positionID]
	if !tracked {
		delete(o.blocked, symbol)
		o.mu.Unlock()
		return true
	}

	now := time.Now()
	if ok && got.Status == domain.PositionClosed {
		pos.Close(got.ExitPrice, got.ExitReason, now)
		pos.PnL = got.PnL
		o.balance += got.PnL
		o.weights.Record(pos.Strategy, got.PnL, now)
	} else {
		pos.Close(pos.EntryPrice, domain.ExitWriteOff, now)
		pos.PnL = 0
	}
	o.closedTrades++
	if pos.PnL > 0 {
		o.wonTrades++
	}
	delete(o.positions, positionID)
	delete(o.blocked, symbol)
	balance := o.balance
	o.mu.Unlock()

	metrics.Balance.Set(balance)
	o.persist(ctx)

	slog.Info("position reconciled",
		"position", positionID,
		"symbol", symbol,
		"pnl", pos.PnL,
		"reason", pos.ExitReason,
	)
	return true
}

func (o *Orchestrator) blockedPosition(symbol string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.blocked[symbol]
	return id, ok
}

// ─── Pause handling ───

// reevaluatePause recomputes the pause reasons while PAUSED. Balance
// driven reasons clear themselves when the condition lapses; a
// persistence failure clears once a save succeeds. target_reached never
// clears on its own because the balance does not move while paused.
func (o *Orchestrator) reevaluatePause(ctx context.Context) []string {
	o.mu.Lock()
	stored := slices.Clone(o.pauseReasons)
	balance := o.balance
	o.mu.Unlock()

	_, reasons := o.compound.ShouldPause(balance)
	if slices.Contains(stored, domain.PausePersistenceFailure) {
		if err := o.store.Save(ctx, o.buildState()); err != nil {
			reasons = append(reasons, domain.PausePersistenceFailure)
		}
	}
	return reasons
}

// fuseSentiment enriches the signal with external sentiment when a
// provider is configured. Provider errors degrade to no adjustment.
func (o *Orchestrator) fuseSentiment(ctx context.Context, sig *domain.SignalCandidate) {
	if o.sentiment == nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, defaultSentimentWait)
	defer cancel()

	sent, err := o.sentiment.Fetch(sctx, sig.Symbol)
	if err != nil {
		slog.Debug("sentiment unavailable", "symbol", sig.Symbol, "err", err)
		return
	}
	sig.ApplySentiment(sent, o.cfg.SentimentWeight)
}
