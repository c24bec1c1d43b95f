package execute_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltabot/internal/adapters/execute"
	"deltabot/internal/domain"
)

func request(id string, confidence float64) domain.ExecutionRequest {
	return domain.ExecutionRequest{
		PositionID: id,
		Symbol:     "BTCUSDT",
		Side:       domain.DirectionLong,
		EntryPrice: 45000,
		Size:       10,
		StopLoss:   44910,
		TakeProfit: 45225,
		Confidence: confidence,
	}
}

func TestExecute_FillsAtEntry(t *testing.T) {
	p := execute.NewPaper(1, 0)

	res, err := p.Execute(context.Background(), request("p1", 0.8))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.InDelta(t, 45000.0, res.FillPrice, 1e-9)
	assert.Equal(t, "p1", res.PositionID)
}

func TestExecute_RejectsZeroSize(t *testing.T) {
	p := execute.NewPaper(1, 0)

	req := request("p1", 0.8)
	req.Size = 0
	res, err := p.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "invalid_size", res.Reason)
}

func TestLookupPosition_FullConfidenceAlwaysWins(t *testing.T) {
	p := execute.NewPaper(42, 0)
	_, err := p.Execute(context.Background(), request("p1", 1.0))
	require.NoError(t, err)

	pos, ok, err := p.LookupPosition(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PositionClosed, pos.Status)
	assert.Equal(t, domain.ExitSimulated, pos.ExitReason)
	// wins pay 0.5-2% of size
	assert.GreaterOrEqual(t, pos.PnL, 10*0.005)
	assert.LessOrEqual(t, pos.PnL, 10*0.02)
	assert.Greater(t, pos.ExitPrice, pos.EntryPrice)
}

func TestLookupPosition_ZeroConfidenceAlwaysLoses(t *testing.T) {
	p := execute.NewPaper(42, 0)
	_, err := p.Execute(context.Background(), request("p1", 0.0))
	require.NoError(t, err)

	pos, ok, err := p.LookupPosition(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	// losses cost 0.2-1% of size
	assert.GreaterOrEqual(t, pos.PnL, -10*0.01)
	assert.LessOrEqual(t, pos.PnL, -10*0.002)
	assert.Less(t, pos.ExitPrice, pos.EntryPrice)
}

func TestLookupPosition_ResolvesOnce(t *testing.T) {
	p := execute.NewPaper(7, 0)
	_, err := p.Execute(context.Background(), request("p1", 0.9))
	require.NoError(t, err)

	first, _, err := p.LookupPosition(context.Background(), "p1")
	require.NoError(t, err)
	second, _, err := p.LookupPosition(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, first.PnL, second.PnL)
	assert.Equal(t, first.ExitPrice, second.ExitPrice)
}

func TestLookupPosition_UnknownID(t *testing.T) {
	p := execute.NewPaper(1, 0)
	_, ok, err := p.LookupPosition(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecute_TimeoutStillRecordsPosition(t *testing.T) {
	p := execute.NewPaper(1, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Execute(ctx, request("p1", 0.8))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// the venue accepted the order; reconciliation can find and settle it
	pos, ok, err := p.LookupPosition(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PositionClosed, pos.Status)
}
