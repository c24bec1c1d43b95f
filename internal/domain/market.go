package domain

import "time"

// Volatility regimes tagged by the market feed. The decision core never
// computes volatility itself, it only reacts to the tag.
const (
	VolatilityNormal = "normal"
	VolatilityHigh   = "high"
)

// MarketSnapshot is one enriched tick for a symbol, as delivered by a feed.
type MarketSnapshot struct {
	Symbol         string
	Price          float64
	Bid            float64
	Ask            float64
	Volume         float64
	AvgVolume      float64
	PriceChangePct float64
	PriceHistory   []float64
	Volatility     string
	Timestamp      time.Time
}

// Spread returns the relative bid/ask spread. Zero price → zero spread.
func (s MarketSnapshot) Spread() float64 {
	if s.Price <= 0 {
		return 0
	}
	return (s.Ask - s.Bid) / s.Price
}

// Valid reports whether the snapshot carries enough data to analyze.
func (s MarketSnapshot) Valid() bool {
	return s.Symbol != "" && s.Price > 0 && s.Bid > 0 && s.Ask > 0 && s.Ask >= s.Bid
}

// SentimentScore is an optional enrichment from an external sentiment source.
// Score is 0..1 with 0.5 neutral; Confidence weights how much it counts.
type SentimentScore struct {
	Score      float64
	Confidence float64
	FetchedAt  time.Time
}

// Adjustment returns the signed confidence delta this sentiment contributes.
// Scores above 0.6 boost, below 0.4 penalize, the 0.4-0.6 band is neutral.
// The raw adjustment is scaled by the source confidence and the fusion weight.
func (s SentimentScore) Adjustment(weight float64) float64 {
	var adj float64
	switch {
	case s.Score > 0.6:
		adj = (s.Score - 0.6) * 0.5
	case s.Score < 0.4:
		adj = (s.Score - 0.4) * 0.5
	}
	return adj * s.Confidence * weight
}
