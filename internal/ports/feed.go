package ports

import (
	"context"

	"deltabot/internal/domain"
)

// MarketFeed streams enriched market snapshots for the configured symbols.
type MarketFeed interface {
	// Snapshots starts the feed and returns the snapshot channel.
	// The channel is closed when the context is cancelled or the feed
	// source is exhausted (replay feeds).
	Snapshots(ctx context.Context) (<-chan domain.MarketSnapshot, error)

	// Close releases the underlying connection or file.
	Close() error
}
