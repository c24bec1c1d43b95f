package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deltabot/internal/domain"
)

const (
	defaultWSURL        = "wss://stream.binance.com:9443/ws"
	defaultReadTimeout  = 90 * time.Second
	reconnectBase       = time.Second
	reconnectMax        = 30 * time.Second
	snapshotChanBuffer  = 64
	writeTimeout        = 5 * time.Second
)

// WSConfig configures the live websocket feed.
type WSConfig struct {
	URL         string
	Symbols     []string
	HistorySize int
	AvgWindow   int
	SpikePct    float64
	ReadTimeout time.Duration
}

// WSFeed streams enriched snapshots from an exchange ticker stream.
// It reconnects with exponential backoff and keeps per-symbol tracking
// across reconnects, so history survives a dropped connection.
type WSFeed struct {
	cfg      WSConfig
	enricher *Enricher

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSFeed creates a feed for the given symbols, filling zero config
// fields with defaults.
func NewWSFeed(cfg WSConfig) (*WSFeed, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("feed.NewWSFeed: no symbols configured")
	}
	if cfg.URL == "" {
		cfg.URL = defaultWSURL
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	return &WSFeed{
		cfg:      cfg,
		enricher: NewEnricher(cfg.HistorySize, cfg.AvgWindow, cfg.SpikePct),
	}, nil
}

// Snapshots starts the stream. The returned channel closes when the
// context is cancelled.
func (f *WSFeed) Snapshots(ctx context.Context) (<-chan domain.MarketSnapshot, error) {
	out := make(chan domain.MarketSnapshot, snapshotChanBuffer)
	go f.run(ctx, out)
	return out, nil
}

func (f *WSFeed) run(ctx context.Context, out chan<- domain.MarketSnapshot) {
	defer close(out)

	backoff := reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}

		err := f.stream(ctx, out)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("feed disconnected, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// stream runs one connection: dial, subscribe, read until error.
func (f *WSFeed) stream(ctx context.Context, out chan<- domain.MarketSnapshot) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed.stream: dial %s: %w", f.cfg.URL, err)
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	defer conn.Close()

	// close the connection when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := f.subscribe(conn); err != nil {
		return err
	}
	slog.Info("feed connected", "url", f.cfg.URL, "symbols", f.cfg.Symbols)

	for {
		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed.stream: read: %w", err)
		}

		tick, ok := parseTicker(msg)
		if !ok {
			continue
		}

		select {
		case out <- f.enricher.Enrich(tick):
		case <-ctx.Done():
			return ctx.Err()
		default:
			// consumer is behind; drop the tick rather than stall the read loop
			slog.Debug("snapshot buffer full, tick dropped", "symbol", tick.Symbol)
		}
	}
}

func (f *WSFeed) subscribe(conn *websocket.Conn) error {
	params := make([]string, len(f.cfg.Symbols))
	for i, s := range f.cfg.Symbols {
		params[i] = strings.ToLower(s) + "@ticker"
	}
	sub := map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed.subscribe: %w", err)
	}
	return nil
}

// tickerMessage is the exchange's 24h ticker event. Prices arrive as
// strings on the wire.
type tickerMessage struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	BestBid   string `json:"b"`
	BestAsk   string `json:"a"`
	Volume    string `json:"v"`
	EventTime int64  `json:"E"`
}

// parseTicker decodes a ticker event into a Tick. Subscription acks and
// other event types return ok=false.
func parseTicker(msg []byte) (Tick, bool) {
	var m tickerMessage
	if err := json.Unmarshal(msg, &m); err != nil || m.Symbol == "" || m.LastPrice == "" {
		return Tick{}, false
	}

	price, err := strconv.ParseFloat(m.LastPrice, 64)
	if err != nil || price <= 0 {
		return Tick{}, false
	}
	bid, _ := strconv.ParseFloat(m.BestBid, 64)
	ask, _ := strconv.ParseFloat(m.BestAsk, 64)
	volume, _ := strconv.ParseFloat(m.Volume, 64)

	at := time.Now()
	if m.EventTime > 0 {
		at = time.UnixMilli(m.EventTime)
	}

	return Tick{
		Symbol: m.Symbol,
		Price:  price,
		Bid:    bid,
		Ask:    ask,
		Volume: volume,
		At:     at,
	}, true
}

// Close shuts the current connection.
func (f *WSFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
