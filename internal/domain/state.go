package domain

import "time"

// AgentMode is the orchestrator's lifecycle state.
type AgentMode string

const (
	ModeInitializing     AgentMode = "INITIALIZING"
	ModeReady            AgentMode = "READY"
	ModeActive           AgentMode = "ACTIVE"
	ModePaused           AgentMode = "PAUSED"
	ModeEmergencyStopped AgentMode = "EMERGENCY_STOPPED"
)

// CompoundState is the durable slice of the compound controller.
type CompoundState struct {
	CurrentRiskPct    float64       `json:"current_risk_pct"`
	ConsecutiveWins   int           `json:"consecutive_wins"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	DailyTradeCount   int           `json:"daily_trade_count"`
	LastResetDate     time.Time     `json:"last_reset_date"`
	CycleStart        float64       `json:"cycle_start"`
	CycleTarget       float64       `json:"cycle_target"`
	TotalCompounded   float64       `json:"total_compounded"`
	Cycles            []CycleRecord `json:"cycles"`
}

// RiskState is the durable slice of the risk gate.
type RiskState struct {
	EmergencyStop  bool      `json:"emergency_stop"`
	TradesExecuted int       `json:"trades_executed"`
	DailyPnL       float64   `json:"daily_pnl"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	LastReset      time.Time `json:"last_reset"`
}

// AgentState is the full durable snapshot the orchestrator persists after
// every mutating event and restores on startup.
type AgentState struct {
	Mode         AgentMode          `json:"mode"`
	PauseReasons []string           `json:"pause_reasons,omitempty"`
	Balance      float64            `json:"balance"`
	Compound     CompoundState      `json:"compound"`
	Risk         RiskState          `json:"risk"`
	Weights      *StrategyWeights   `json:"weights,omitempty"`
	Positions    []TradePosition    `json:"positions,omitempty"`
	ErrorCount   int                `json:"error_count"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// TickAction is the tagged outcome of processing one snapshot.
type TickAction string

const (
	TickExecute TickAction = "execute"
	TickSkip    TickAction = "skip"
	TickPause   TickAction = "pause"
)

// TickResult is what one ProcessTick returns. Every tick produces one,
// there is no silent-failure path.
type TickResult struct {
	Symbol   string
	Action   TickAction
	Reason   string
	Signal   *SignalCandidate
	Position *TradePosition
	Closed   []TradePosition
	Duration time.Duration
}

// CycleProgress summarizes the current compound cycle for status output.
type CycleProgress struct {
	Start       float64
	Target      float64
	ProgressPct float64
	Completed   int
}

// StatusReport is the periodic operational summary sent to notifiers.
type StatusReport struct {
	Mode          AgentMode
	PauseReasons  []string
	Uptime        time.Duration
	Balance       float64
	DailyPnL      float64
	DailyTrades   int
	OpenPositions int
	ClosedTrades  int
	WinRate       float64
	Cycle         CycleProgress
	Weights       map[string]float64
	ErrorCount    int
	Preview       bool
	GeneratedAt   time.Time
}
