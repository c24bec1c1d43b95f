package domain

import "time"

// PositionStatus is the lifecycle of a tracked position.
type PositionStatus string

const (
	PositionActive PositionStatus = "ACTIVE"
	PositionClosed PositionStatus = "CLOSED"
	// PositionUnresolved marks a position whose execution timed out before
	// the outcome was known. The symbol stays blocked until reconciliation.
	PositionUnresolved PositionStatus = "UNRESOLVED"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitMaxTime    ExitReason = "MAX_TIME"
	ExitSimulated  ExitReason = "SIMULATED"
	ExitWriteOff   ExitReason = "WRITE_OFF"
)

// TradePosition is one open or closed position.
type TradePosition struct {
	ID           string
	Symbol       string
	Side         Direction
	EntryPrice   float64
	Size         float64
	StopLoss     float64
	TakeProfit   float64
	Confidence   float64
	Strategy     string
	OpenedAt     time.Time
	MaxHoldUntil time.Time
	Status       PositionStatus
	ExitPrice    float64
	ExitReason   ExitReason
	ClosedAt     *time.Time
	PnL          float64
}

// CheckExit returns the exit reason if the position should close at the
// given price. Max-hold expiry is checked before price levels.
func (p TradePosition) CheckExit(price float64, now time.Time) (ExitReason, bool) {
	if !now.Before(p.MaxHoldUntil) {
		return ExitMaxTime, true
	}
	if p.Side == DirectionLong {
		if price <= p.StopLoss {
			return ExitStopLoss, true
		}
		if price >= p.TakeProfit {
			return ExitTakeProfit, true
		}
	} else {
		if price >= p.StopLoss {
			return ExitStopLoss, true
		}
		if price <= p.TakeProfit {
			return ExitTakeProfit, true
		}
	}
	return "", false
}

// PnLAt returns the realized PnL for closing at exitPrice.
func (p TradePosition) PnLAt(exitPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	if p.Side == DirectionLong {
		return (exitPrice - p.EntryPrice) / p.EntryPrice * p.Size
	}
	return (p.EntryPrice - exitPrice) / p.EntryPrice * p.Size
}

// Close marks the position closed at exitPrice and records the PnL.
func (p *TradePosition) Close(exitPrice float64, reason ExitReason, at time.Time) {
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.PnL = p.PnLAt(exitPrice)
	p.Status = PositionClosed
	p.ClosedAt = &at
}

// ExecutionRequest is sent to a trade executor to open a position.
type ExecutionRequest struct {
	PositionID string
	Symbol     string
	Side       Direction
	EntryPrice float64
	Size       float64
	StopLoss   float64
	TakeProfit float64
	Confidence float64
}

// ExecutionResult is the executor's response to an ExecutionRequest.
type ExecutionResult struct {
	PositionID string
	Accepted   bool
	FillPrice  float64
	Reason     string
	ExecutedAt time.Time
}
