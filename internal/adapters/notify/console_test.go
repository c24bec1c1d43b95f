package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltabot/internal/adapters/notify"
	"deltabot/internal/domain"
)

func executeResult() domain.TickResult {
	return domain.TickResult{
		Symbol: "BTCUSDT",
		Action: domain.TickExecute,
		Position: &domain.TradePosition{
			Symbol:     "BTCUSDT",
			Side:       domain.DirectionLong,
			Size:       7,
			EntryPrice: 45000,
			Confidence: 0.89,
			StopLoss:   44910,
			TakeProfit: 45225,
		},
		Duration: 12 * time.Millisecond,
	}
}

func TestNotifyDecision_Execute(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.NotifyDecision(context.Background(), executeResult()))

	out := buf.String()
	assert.Contains(t, out, "BTCUSDT OPEN LONG")
	assert.Contains(t, out, "size$7.00")
	assert.Contains(t, out, "conf0.89")
}

func TestNotifyDecision_SkipOnlyWhenVerbose(t *testing.T) {
	skip := domain.TickResult{Symbol: "BTCUSDT", Action: domain.TickSkip, Reason: "no_signal"}

	var quiet bytes.Buffer
	n := notify.NewConsoleWriter(&quiet, false)
	require.NoError(t, n.NotifyDecision(context.Background(), skip))
	assert.Empty(t, quiet.String())

	var loud bytes.Buffer
	n = notify.NewConsoleWriter(&loud, true)
	require.NoError(t, n.NotifyDecision(context.Background(), skip))
	assert.Contains(t, loud.String(), "skip: no_signal")
}

func TestNotifyDecision_ClosedPositions(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	res := domain.TickResult{
		Symbol: "BTCUSDT",
		Action: domain.TickSkip,
		Reason: "no_signal",
		Closed: []domain.TradePosition{{
			Symbol:     "BTCUSDT",
			Side:       domain.DirectionLong,
			ExitReason: domain.ExitTakeProfit,
			ExitPrice:  45225,
			PnL:        0.035,
		}},
	}
	require.NoError(t, n.NotifyDecision(context.Background(), res))

	out := buf.String()
	assert.Contains(t, out, "CLOSE LONG TAKE_PROFIT")
	assert.Contains(t, out, "+0.0350")
}

func TestNotifyDecision_Pause(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	res := domain.TickResult{Symbol: "BTCUSDT", Action: domain.TickPause, Reason: "daily_limit_reached"}
	require.NoError(t, n.NotifyDecision(context.Background(), res))
	assert.Contains(t, buf.String(), "PAUSE daily_limit_reached")
}

func TestNotifyStatus_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	report := domain.StatusReport{
		Mode:          domain.ModePaused,
		PauseReasons:  []string{"daily_limit_reached"},
		Uptime:        90 * time.Minute,
		Balance:       142.5,
		DailyPnL:      3.25,
		DailyTrades:   12,
		OpenPositions: 1,
		WinRate:       62.5,
		Cycle:         domain.CycleProgress{Start: 121, Target: 133.1, ProgressPct: 45.2, Completed: 2},
		Weights:       map[string]float64{"delta_scalping": 1},
		Preview:       true,
		GeneratedAt:   time.Now(),
	}
	require.NoError(t, n.NotifyStatus(context.Background(), report))

	out := buf.String()
	assert.Contains(t, out, "PAPER")
	assert.Contains(t, out, "PAUSED (daily_limit_reached)")
	assert.Contains(t, out, "$142.50")
	assert.Contains(t, out, "62.5%")
	assert.Contains(t, out, "delta_scalping=1.00")
}

func TestRenderCycles(t *testing.T) {
	var buf bytes.Buffer
	notify.RenderCycles(&buf, []domain.CycleRecord{{
		Number: 1, StartBalance: 100, EndBalance: 110, TargetBalance: 110,
		GainAmount: 10, GainPct: 10, TradesInCycle: 6,
		CompletedAt: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}})
	out := buf.String()
	assert.Contains(t, out, "$110.00")
	assert.Contains(t, out, "10.0%")

	buf.Reset()
	notify.RenderCycles(&buf, nil)
	assert.Contains(t, buf.String(), "no completed cycles")
}
