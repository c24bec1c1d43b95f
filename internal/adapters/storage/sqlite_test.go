package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltabot/internal/adapters/storage"
	"deltabot/internal/domain"
)

func makeState() domain.AgentState {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.AgentState{
		Mode:         domain.ModePaused,
		PauseReasons: []string{domain.PauseExcessiveLosses},
		Balance:      142.5,
		ErrorCount:   2,
		Compound: domain.CompoundState{
			CurrentRiskPct:    0.12,
			ConsecutiveWins:   3,
			CycleStart:        121,
			CycleTarget:       133.1,
			TotalCompounded:   21,
			LastResetDate:     now,
			Cycles: []domain.CycleRecord{
				{Number: 1, StartBalance: 100, EndBalance: 110, TargetBalance: 110,
					GainAmount: 10, GainPct: 10, TradesInCycle: 6, CompletedAt: now},
				{Number: 2, StartBalance: 110, EndBalance: 121, TargetBalance: 121,
					GainAmount: 11, GainPct: 10, TradesInCycle: 4, CompletedAt: now},
			},
		},
		Risk: domain.RiskState{
			EmergencyStop:  true,
			TradesExecuted: 7,
			DailyPnL:       -3.2,
			LastReset:      now,
		},
		Weights: domain.NewStrategyWeights("delta_scalping"),
		Positions: []domain.TradePosition{{
			ID:           "pos-1",
			Symbol:       "BTCUSDT",
			Side:         domain.DirectionLong,
			EntryPrice:   45000,
			Size:         7,
			StopLoss:     44910,
			TakeProfit:   45225,
			Confidence:   0.91,
			Strategy:     "delta_scalping",
			OpenedAt:     now,
			MaxHoldUntil: now.Add(5 * time.Minute),
			Status:       domain.PositionUnresolved,
		}},
		UpdatedAt: now,
	}
}

func TestSQLiteStore_EmptyLoadReturnsNil(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	want := makeState()
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, domain.ModePaused, got.Mode)
	assert.Equal(t, []string{domain.PauseExcessiveLosses}, got.PauseReasons)
	assert.InDelta(t, 142.5, got.Balance, 1e-9)
	assert.Equal(t, 2, got.ErrorCount)

	assert.InDelta(t, 0.12, got.Compound.CurrentRiskPct, 1e-9)
	assert.Len(t, got.Compound.Cycles, 2)
	assert.True(t, got.Risk.EmergencyStop)
	assert.Equal(t, 7, got.Risk.TradesExecuted)

	require.NotNil(t, got.Weights)
	assert.InDelta(t, 1.0, got.Weights.Weights["delta_scalping"], 1e-9)

	require.Len(t, got.Positions, 1)
	assert.Equal(t, "pos-1", got.Positions[0].ID)
	assert.Equal(t, domain.PositionUnresolved, got.Positions[0].Status)
	assert.Equal(t, domain.DirectionLong, got.Positions[0].Side)
}

func TestSQLiteStore_SaveReplacesSnapshot(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	first := makeState()
	require.NoError(t, store.Save(context.Background(), first))

	second := first
	second.Mode = domain.ModeActive
	second.PauseReasons = nil
	second.Balance = 150
	second.Positions = nil
	require.NoError(t, store.Save(context.Background(), second))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ModeActive, got.Mode)
	assert.Empty(t, got.PauseReasons)
	assert.InDelta(t, 150.0, got.Balance, 1e-9)
	assert.Empty(t, got.Positions)
}

func TestSQLiteStore_CycleHistory(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), makeState()))

	cycles, err := store.CycleHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cycles, 2)

	// newest first
	assert.Equal(t, 2, cycles[0].Number)
	assert.InDelta(t, 121.0, cycles[0].EndBalance, 1e-9)
	assert.Equal(t, 1, cycles[1].Number)
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	path := t.TempDir() + "/state/agent.json"
	store, err := storage.NewFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	empty, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, empty)

	want := makeState()
	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Mode, got.Mode)
	assert.InDelta(t, want.Balance, got.Balance, 1e-9)
	require.Len(t, got.Positions, 1)
	assert.Equal(t, "pos-1", got.Positions[0].ID)
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	path := t.TempDir() + "/agent.json"
	store, err := storage.NewFileStore(path)
	require.NoError(t, err)

	first := makeState()
	require.NoError(t, store.Save(context.Background(), first))

	second := first
	second.Balance = 99
	require.NoError(t, store.Save(context.Background(), second))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 99.0, got.Balance, 1e-9)
}
