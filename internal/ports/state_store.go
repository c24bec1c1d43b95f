package ports

import (
	"context"

	"deltabot/internal/domain"
)

// StateStore persists the durable agent state. Each Save replaces the
// previous snapshot atomically: readers never observe a partial write.
type StateStore interface {
	// Load returns the last persisted state, or nil if none exists.
	Load(ctx context.Context) (*domain.AgentState, error)

	// Save atomically replaces the persisted state.
	Save(ctx context.Context, state domain.AgentState) error

	// Close releases the underlying resource cleanly.
	Close() error
}
