package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltabot/internal/domain"
)

// insideHours pins the gate clock to a weekday trading hour so the
// outside-hours warning never skews the assertions.
func insideHours(g *Gate) {
	g.now = func() time.Time {
		return time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	}
	g.lastReset = g.now()
}

func goodSignal() domain.SignalCandidate {
	return domain.SignalCandidate{
		Symbol:     "BTCUSDT",
		Direction:  domain.DirectionLong,
		Confidence: 0.8,
		EntryPrice: 45000,
		StopLoss:   44910,
		Volatility: domain.VolatilityNormal,
	}
}

func TestValidate_CleanSignal(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	res := g.Validate(goodSignal())
	assert.True(t, res.Valid)
	assert.Equal(t, 0, res.RiskScore)
	assert.Empty(t, res.Blocks)
}

func TestValidate_MissingConfidence(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	sig := goodSignal()
	sig.Confidence = 0
	res := g.Validate(sig)
	require.False(t, res.Valid)
	assert.Contains(t, res.Blocks, "Missing required field: confidence")
}

func TestValidate_AllRequiredFieldsReported(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	res := g.Validate(domain.SignalCandidate{})
	require.False(t, res.Valid)
	assert.Contains(t, res.Blocks, "Missing required field: symbol")
	assert.Contains(t, res.Blocks, "Missing required field: direction")
	assert.Contains(t, res.Blocks, "Missing required field: confidence")
	assert.Contains(t, res.Blocks, "Missing required field: entry_price")
}

func TestValidate_LowConfidenceWarns(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	sig := goodSignal()
	sig.Confidence = 0.55
	res := g.Validate(sig)
	assert.True(t, res.Valid)
	assert.Equal(t, 20, res.RiskScore)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidate_ScoreAccumulatesToBlock(t *testing.T) {
	// low confidence (20) + high volatility (15) + outside hours (10) = 45,
	// still allowed; the block needs > 50, which no warning combo reaches
	// alone, so force it via all three plus confirm the arithmetic.
	g := New(Policy{})
	g.now = func() time.Time {
		return time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	}
	g.lastReset = g.now()

	sig := goodSignal()
	sig.Confidence = 0.55
	sig.Volatility = domain.VolatilityHigh
	res := g.Validate(sig)
	assert.Equal(t, 45, res.RiskScore)
	assert.True(t, res.Valid)
}

func TestValidate_EmergencyStopBlocks(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	g.TriggerEmergencyStop("test")
	res := g.Validate(goodSignal())
	require.False(t, res.Valid)
	assert.Contains(t, res.Blocks, "Emergency stop activated")
}

func TestPositionSize_RespectsCaps(t *testing.T) {
	g := New(Policy{Preview: false})
	insideHours(g)
	s := g.PositionSize(goodSignal(), 1000, false)
	require.True(t, s.Approved)
	// risk 2% of 1000 = 20, stop distance 0.002 → 10000, capped at 10% = 100
	assert.InDelta(t, 100.0, s.Size, 0.0001)
	assert.Equal(t, domain.RiskCritical, s.RiskLevel)
}

func TestPositionSize_CompoundConservatism(t *testing.T) {
	g := New(Policy{Preview: false})
	insideHours(g)
	plain := g.PositionSize(goodSignal(), 1000, false)
	comp := g.PositionSize(goodSignal(), 1000, true)
	assert.InDelta(t, plain.Size*0.7, comp.Size, 0.0001)
}

func TestPositionSize_PreviewCap(t *testing.T) {
	g := New(Policy{Preview: true})
	insideHours(g)
	s := g.PositionSize(goodSignal(), 10000, false)
	assert.LessOrEqual(t, s.Size, 50.0)
}

func TestPositionSize_DefaultStopDistance(t *testing.T) {
	g := New(Policy{Preview: false})
	insideHours(g)
	sig := goodSignal()
	sig.StopLoss = 0
	s := g.PositionSize(sig, 1000, false)
	assert.InDelta(t, 0.02, s.StopDistance, 1e-9)
}

func TestPositionSize_EmergencyStopZero(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	g.TriggerEmergencyStop("test")
	s := g.PositionSize(goodSignal(), 1000, false)
	assert.False(t, s.Approved)
	assert.Equal(t, 0.0, s.Size)
	assert.Equal(t, "EMERGENCY_STOP", s.RiskLevel)
}

func TestPositionSize_DailyLossLimit(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	g.RecordOutcome("p1", -60, 1000) // beyond 5% of 1000
	s := g.PositionSize(goodSignal(), 1000, false)
	assert.False(t, s.Approved)
	assert.Equal(t, "MAX_LOSS_REACHED", s.RiskLevel)
}

func TestPositionSize_DailyTradeLimit(t *testing.T) {
	g := New(Policy{MaxDailyTrades: 2})
	insideHours(g)
	g.RecordOutcome("p1", 1, 1000)
	g.RecordOutcome("p2", 1, 1000)
	s := g.PositionSize(goodSignal(), 1000, false)
	assert.False(t, s.Approved)
	assert.Equal(t, "MAX_TRADES_REACHED", s.RiskLevel)
}

func TestRecordOutcome_EmergencyOnLargeLoss(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	g.RecordOutcome("p1", -20, 100) // 20% loss > 15% threshold
	assert.True(t, g.EmergencyStopped())
}

func TestRecordOutcome_SmallLossNoEmergency(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	g.RecordOutcome("p1", -5, 100)
	assert.False(t, g.EmergencyStopped())
	assert.InDelta(t, -5.0, g.DailyPnL(), 1e-9)
}

func TestResetEmergencyStop_Token(t *testing.T) {
	g := New(Policy{ResetToken: "sesame"})
	insideHours(g)
	g.TriggerEmergencyStop("test")

	assert.False(t, g.ResetEmergencyStop("wrong"))
	assert.True(t, g.EmergencyStopped())

	assert.True(t, g.ResetEmergencyStop("sesame"))
	assert.False(t, g.EmergencyStopped())
}

func TestResetEmergencyStop_NoTokenConfigured(t *testing.T) {
	g := New(Policy{})
	g.TriggerEmergencyStop("test")
	assert.False(t, g.ResetEmergencyStop(""))
	assert.True(t, g.EmergencyStopped())
}

func TestDailyReset_ClearsStats(t *testing.T) {
	g := New(Policy{})
	insideHours(g)
	g.RecordOutcome("p1", -10, 1000)
	require.Equal(t, 1, g.TradesExecuted())

	day2 := g.now().Add(24 * time.Hour)
	g.now = func() time.Time { return day2 }
	assert.Equal(t, 0, g.TradesExecuted())
	assert.Equal(t, 0.0, g.DailyPnL())
}

func TestStateRoundTrip_EmergencySurvives(t *testing.T) {
	g := New(Policy{ResetToken: "sesame"})
	insideHours(g)
	g.TriggerEmergencyStop("test")
	g.RecordOutcome("p1", -3, 1000)

	state := g.State()
	g2 := New(Policy{ResetToken: "sesame"})
	insideHours(g2)
	g2.Restore(state)

	assert.True(t, g2.EmergencyStopped())
	assert.Equal(t, 1, g2.TradesExecuted())
}
