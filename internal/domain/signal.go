package domain

import (
	"math"
	"time"
)

// Direction is the side of a signal or position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// SignalCandidate is a fully scored entry proposal for one symbol.
// It carries the raw component scores so downstream gates and reports
// do not need to recompute them.
type SignalCandidate struct {
	Symbol      string
	Direction   Direction
	Confidence  float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	Momentum    float64
	VolumeScore float64
	Spread      float64
	PriceDelta  float64
	Volatility  string
	CreatedAt   time.Time
}

// ApplySentiment folds an external sentiment score into the confidence,
// clamped to [0,1]. Neutral sentiment leaves the signal untouched.
func (s *SignalCandidate) ApplySentiment(sent SentimentScore, weight float64) {
	s.Confidence = clamp(s.Confidence+sent.Adjustment(weight), 0, 1)
}

// Momentum scores directional pressure from recent prices as 0..1.
// It takes the least-squares slope over the last `window` prices,
// normalizes it by the mean price and maps it around the 0.5 neutral
// point. Fewer than `window` samples → neutral 0.5.
func Momentum(history []float64, window int) float64 {
	if window <= 0 || len(history) < window {
		return 0.5
	}
	recent := history[len(history)-window:]

	n := float64(len(recent))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range recent {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0.5
	}
	slope := (n*sumXY - sumX*sumY) / denom

	mean := sumY / n
	if mean == 0 {
		return 0.5
	}
	return clamp(0.5+(slope/mean)*1000, 0, 1)
}

// VolumeScore scores current volume against its rolling average.
// Ratios at or above `multiplier` confirm the move (0.75..1 range);
// below it the score decays toward the 0.1 floor. Unknown average → 0.5.
func VolumeScore(current, avg, multiplier float64) float64 {
	if avg <= 0 {
		return 0.5
	}
	ratio := current / avg
	if ratio >= multiplier {
		return math.Min(1.0, ratio/(multiplier*2))
	}
	return math.Max(0.1, ratio/multiplier)
}

// SignalConfidence combines the four component checks into one 0..1 score:
// 30% delta presence, 40% momentum distance from neutral, 20% volume
// confirmation, 10% inverse spread.
func SignalConfidence(deltaValid bool, momentum, volumeScore, spread float64) float64 {
	var delta float64
	if deltaValid {
		delta = 1
	}
	return 0.3*delta +
		0.4*(math.Abs(momentum-0.5)*2) +
		0.2*volumeScore +
		0.1*(1-math.Min(spread*1000, 1))
}

// ProtectiveLevels returns stop-loss and take-profit prices for an entry.
func ProtectiveLevels(entry float64, dir Direction, stopPct, profitPct float64) (stop, profit float64) {
	if dir == DirectionLong {
		return entry * (1 - stopPct), entry * (1 + profitPct)
	}
	return entry * (1 + stopPct), entry * (1 - profitPct)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
