package ports

import (
	"context"

	"deltabot/internal/domain"
)

// SentimentProvider fetches an external sentiment score for a symbol.
// Providers are optional; the orchestrator degrades gracefully when the
// provider errors or is absent.
type SentimentProvider interface {
	Fetch(ctx context.Context, symbol string) (domain.SentimentScore, error)
}
