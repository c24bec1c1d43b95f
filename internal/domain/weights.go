package domain

import "time"

const (
	weightsWindow       = 100 // trailing trades kept for adaptation
	weightsMinTrades    = 10
	adaptationThreshold = 0.1
	adaptationRate      = 0.2
)

// PerformanceRecord is one trade outcome attributed to a strategy.
type PerformanceRecord struct {
	Strategy string    `json:"strategy"`
	PnL      float64   `json:"pnl"`
	At       time.Time `json:"at"`
}

// StrategyWeights adapts allocation across strategies from trailing PnL.
// Weights always sum to 1 within 1e-6. Not safe for concurrent use;
// callers serialize access.
type StrategyWeights struct {
	Weights map[string]float64  `json:"weights"`
	History []PerformanceRecord `json:"history"`
}

// NewStrategyWeights starts with equal weights across the given strategies.
func NewStrategyWeights(strategies ...string) *StrategyWeights {
	w := &StrategyWeights{Weights: make(map[string]float64, len(strategies))}
	if len(strategies) == 0 {
		return w
	}
	eq := 1.0 / float64(len(strategies))
	for _, s := range strategies {
		w.Weights[s] = eq
	}
	return w
}

// Record appends a trade outcome and re-adapts the weights.
// Only the trailing window is kept.
func (w *StrategyWeights) Record(strategy string, pnl float64, at time.Time) {
	w.History = append(w.History, PerformanceRecord{Strategy: strategy, PnL: pnl, At: at})
	if len(w.History) > weightsWindow {
		w.History = w.History[len(w.History)-weightsWindow:]
	}
	w.adapt()
}

// adapt shifts weights toward strategies with better recent average PnL.
// Adaptation only kicks in once enough trades are recorded and the
// performance gap between best and worst exceeds the threshold.
func (w *StrategyWeights) adapt() {
	if len(w.History) < weightsMinTrades {
		return
	}

	perf := make(map[string][]float64)
	for _, r := range w.History[len(w.History)-weightsMinTrades:] {
		perf[r.Strategy] = append(perf[r.Strategy], r.PnL)
	}

	avg := make(map[string]float64, len(perf))
	first := true
	var maxPerf, minPerf float64
	for s, pnls := range perf {
		var sum float64
		for _, p := range pnls {
			sum += p
		}
		a := sum / float64(len(pnls))
		avg[s] = a
		if first {
			maxPerf, minPerf = a, a
			first = false
		} else {
			if a > maxPerf {
				maxPerf = a
			}
			if a < minPerf {
				minPerf = a
			}
		}
	}

	if len(avg) == 0 || maxPerf-minPerf <= adaptationThreshold {
		return
	}

	var totalPositive float64
	for _, a := range avg {
		if a > 0 {
			totalPositive += a
		}
	}
	if totalPositive > 0 {
		for s := range w.Weights {
			a, ok := avg[s]
			if !ok {
				continue
			}
			if a < 0 {
				a = 0
			}
			normalized := a / totalPositive
			w.Weights[s] = (1-adaptationRate)*w.Weights[s] + adaptationRate*normalized
		}
	}

	w.normalize()
}

// normalize rescales the weights so they sum to exactly 1.
func (w *StrategyWeights) normalize() {
	var total float64
	for _, v := range w.Weights {
		total += v
	}
	if total <= 0 {
		return
	}
	for s := range w.Weights {
		w.Weights[s] /= total
	}
}

// Snapshot returns a copy of the current weights.
func (w *StrategyWeights) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(w.Weights))
	for s, v := range w.Weights {
		out[s] = v
	}
	return out
}
