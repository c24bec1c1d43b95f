// Package feed provides market snapshot sources: a websocket stream for
// live ticks and a JSONL replay reader for offline runs. Both go through
// the same Enricher so the analyzer sees identical snapshots either way.
package feed

import (
	"slices"
	"sync"
	"time"

	"deltabot/internal/domain"
)

const (
	defaultHistorySize = 50
	defaultAvgWindow   = 20
	defaultSpikePct    = 0.01 // (max-min)/mean above this tags high volatility
)

// Tick is one raw market observation before enrichment.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Volume float64   `json:"volume"`
	At     time.Time `json:"at"`
}

// Enricher turns raw ticks into analyzable snapshots by tracking
// per-symbol price history, rolling average volume and a volatility tag.
// Safe for concurrent use.
type Enricher struct {
	historySize int
	avgWindow   int
	spikePct    float64

	mu      sync.Mutex
	symbols map[string]*symbolTrack
}

type symbolTrack struct {
	history   []float64
	volumes   []float64
	lastPrice float64
}

// NewEnricher creates an Enricher; zero arguments fall back to defaults.
func NewEnricher(historySize, avgWindow int, spikePct float64) *Enricher {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if avgWindow <= 0 {
		avgWindow = defaultAvgWindow
	}
	if spikePct <= 0 {
		spikePct = defaultSpikePct
	}
	return &Enricher{
		historySize: historySize,
		avgWindow:   avgWindow,
		spikePct:    spikePct,
		symbols:     make(map[string]*symbolTrack),
	}
}

// Enrich folds one tick into the per-symbol tracking and returns the
// full snapshot. The first tick of a symbol has no delta and a neutral
// volume average.
func (e *Enricher) Enrich(t Tick) domain.MarketSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, ok := e.symbols[t.Symbol]
	if !ok {
		track = &symbolTrack{}
		e.symbols[t.Symbol] = track
	}

	change := 0.0
	if track.lastPrice > 0 {
		change = (t.Price - track.lastPrice) / track.lastPrice
	}

	// average over prior ticks only; the current one is what we compare
	avgVolume := 0.0
	if len(track.volumes) > 0 {
		var sum float64
		for _, v := range track.volumes {
			sum += v
		}
		avgVolume = sum / float64(len(track.volumes))
	}

	track.history = append(track.history, t.Price)
	if len(track.history) > e.historySize {
		track.history = track.history[len(track.history)-e.historySize:]
	}
	track.volumes = append(track.volumes, t.Volume)
	if len(track.volumes) > e.avgWindow {
		track.volumes = track.volumes[len(track.volumes)-e.avgWindow:]
	}
	track.lastPrice = t.Price

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	return domain.MarketSnapshot{
		Symbol:         t.Symbol,
		Price:          t.Price,
		Bid:            t.Bid,
		Ask:            t.Ask,
		Volume:         t.Volume,
		AvgVolume:      avgVolume,
		PriceChangePct: change,
		PriceHistory:   slices.Clone(track.history),
		Volatility:     e.volatilityLocked(track),
		Timestamp:      at,
	}
}

func (e *Enricher) volatilityLocked(track *symbolTrack) string {
	if len(track.history) < 2 {
		return domain.VolatilityNormal
	}
	lo, hi := track.history[0], track.history[0]
	var sum float64
	for _, p := range track.history {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
		sum += p
	}
	mean := sum / float64(len(track.history))
	if mean > 0 && (hi-lo)/mean > e.spikePct {
		return domain.VolatilityHigh
	}
	return domain.VolatilityNormal
}
