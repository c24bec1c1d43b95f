package ports

import (
	"context"

	"deltabot/internal/domain"
)

// TradeExecutor opens positions and answers reconciliation lookups.
type TradeExecutor interface {
	// Execute opens a position for the given request. Implementations
	// must honor the context deadline; the orchestrator treats a timeout
	// as an unresolved execution.
	Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResult, error)

	// LookupPosition returns the executor's view of a position, used to
	// reconcile positions whose execution timed out. ok is false when the
	// executor has no record of the ID.
	LookupPosition(ctx context.Context, positionID string) (domain.TradePosition, bool, error)
}
