// Package execute contains trade executors. Paper is the only venue:
// it fills instantly at the requested price and resolves positions with
// a simulated outcome, keeping the full pipeline exercisable without
// touching an exchange.
package execute

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"deltabot/internal/domain"
)

// Outcome simulation bands: the win probability equals the signal
// confidence, wins pay 0.5-2% of size, losses cost 0.2-1%.
const (
	winGainMin = 0.005
	winGainMax = 0.02
	lossMin    = 0.002
	lossMax    = 0.01
)

// Paper implements ports.TradeExecutor as a simulated venue.
type Paper struct {
	delay time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	positions map[string]domain.TradePosition
}

// NewPaper creates a paper executor. seed 0 uses a time-based seed;
// delay simulates venue latency and is honored against the context, so
// a short execution deadline produces a realistic timeout.
func NewPaper(seed int64, delay time.Duration) *Paper {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Paper{
		delay:     delay,
		rng:       rand.New(rand.NewSource(seed)),
		positions: make(map[string]domain.TradePosition),
	}
}

// Execute fills the request at the entry price. The position is recorded
// before the latency wait, so a timed-out caller can still reconcile it
// later.
func (p *Paper) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error) {
	if req.Size <= 0 {
		return domain.ExecutionResult{PositionID: req.PositionID, Reason: "invalid_size"}, nil
	}

	now := time.Now()
	p.mu.Lock()
	p.positions[req.PositionID] = domain.TradePosition{
		ID:         req.PositionID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		EntryPrice: req.EntryPrice,
		Size:       req.Size,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Confidence: req.Confidence,
		OpenedAt:   now,
		Status:     domain.PositionActive,
	}
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.ExecutionResult{}, fmt.Errorf("execute.Paper: %s: %w", req.PositionID, ctx.Err())
		}
	}

	return domain.ExecutionResult{
		PositionID: req.PositionID,
		Accepted:   true,
		FillPrice:  req.EntryPrice,
		ExecutedAt: now,
	}, nil
}

// LookupPosition returns the venue's view of a position. An active
// position is resolved on first lookup with a simulated outcome.
func (p *Paper) LookupPosition(ctx context.Context, positionID string) (domain.TradePosition, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[positionID]
	if !ok {
		return domain.TradePosition{}, false, nil
	}
	if pos.Status != domain.PositionActive {
		return pos, true, nil
	}

	pnl := p.simulateOutcomeLocked(pos)
	exitPrice := pos.EntryPrice
	if pos.EntryPrice > 0 && pos.Size > 0 {
		move := pnl / pos.Size * pos.EntryPrice
		if pos.Side == domain.DirectionLong {
			exitPrice = pos.EntryPrice + move
		} else {
			exitPrice = pos.EntryPrice - move
		}
	}

	now := time.Now()
	pos.ExitPrice = exitPrice
	pos.ExitReason = domain.ExitSimulated
	pos.PnL = pnl
	pos.Status = domain.PositionClosed
	pos.ClosedAt = &now
	p.positions[positionID] = pos

	return pos, true, nil
}

// simulateOutcomeLocked draws the trade result: the signal confidence is
// the win probability.
func (p *Paper) simulateOutcomeLocked(pos domain.TradePosition) float64 {
	if p.rng.Float64() < pos.Confidence {
		return pos.Size * (winGainMin + p.rng.Float64()*(winGainMax-winGainMin))
	}
	return -pos.Size * (lossMin + p.rng.Float64()*(lossMax-lossMin))
}
