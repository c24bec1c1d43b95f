package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"deltabot/internal/domain"
)

// ReplayFeed reads ticks from a JSONL file, one Tick per line, and
// replays them through the enricher. The snapshot channel closes at EOF,
// which ends the agent run cleanly.
type ReplayFeed struct {
	path     string
	delay    time.Duration
	enricher *Enricher
	file     *os.File
}

// NewReplayFeed opens the tick file. delay inserts a pause between ticks
// (zero replays as fast as the consumer keeps up).
func NewReplayFeed(path string, delay time.Duration) (*ReplayFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed.NewReplayFeed: open %q: %w", path, err)
	}
	return &ReplayFeed{
		path:     path,
		delay:    delay,
		enricher: NewEnricher(0, 0, 0),
		file:     file,
	}, nil
}

// Snapshots streams the file's ticks. Malformed lines are skipped with a
// warning rather than aborting the replay.
func (f *ReplayFeed) Snapshots(ctx context.Context) (<-chan domain.MarketSnapshot, error) {
	out := make(chan domain.MarketSnapshot)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(f.file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var tick Tick
			if err := json.Unmarshal(raw, &tick); err != nil {
				slog.Warn("replay: bad tick skipped", "file", f.path, "line", line, "err", err)
				continue
			}

			select {
			case out <- f.enricher.Enrich(tick):
			case <-ctx.Done():
				return
			}

			if f.delay > 0 {
				select {
				case <-time.After(f.delay):
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Error("replay: read failed", "file", f.path, "err", err)
		}
	}()

	return out, nil
}

// Close closes the tick file.
func (f *ReplayFeed) Close() error {
	return f.file.Close()
}
