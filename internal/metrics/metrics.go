// Package metrics exposes the agent's Prometheus instrumentation.
//
// Counters:
//   - deltabot_ticks_total{action}    processed ticks by decision action
//   - deltabot_trades_total{result}   resolved trades by win/loss
//   - deltabot_analyzer_errors_total  non-fatal analyzer errors
//   - deltabot_emergency_stops_total  emergency stop activations
//   - deltabot_cycles_completed_total completed compound cycles
//
// Gauges:
//   - deltabot_balance          current account balance
//   - deltabot_open_positions   currently open positions
//   - deltabot_daily_pnl        realized PnL for the current day
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deltabot_ticks_total",
		Help: "Processed market ticks by decision action.",
	}, []string{"action"})

	TradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deltabot_trades_total",
		Help: "Resolved trades by outcome.",
	}, []string{"result"})

	AnalyzerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltabot_analyzer_errors_total",
		Help: "Non-fatal analyzer errors.",
	})

	EmergencyStops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltabot_emergency_stops_total",
		Help: "Emergency stop activations.",
	})

	CyclesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deltabot_cycles_completed_total",
		Help: "Completed compound cycles.",
	})

	Balance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deltabot_balance",
		Help: "Current account balance.",
	})

	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deltabot_open_positions",
		Help: "Currently open positions.",
	})

	DailyPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deltabot_daily_pnl",
		Help: "Realized PnL for the current day.",
	})

	DecisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deltabot_decision_duration_seconds",
		Help:    "Time spent deciding on one tick.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TradesTotal,
		AnalyzerErrors,
		EmergencyStops,
		CyclesCompleted,
		Balance,
		OpenPositions,
		DailyPnL,
		DecisionDuration,
	)
}
