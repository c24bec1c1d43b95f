package ports

import (
	"context"

	"deltabot/internal/domain"
)

// Notifier surfaces decisions and periodic status to an operator.
type Notifier interface {
	// NotifyDecision reports the outcome of one processed tick.
	NotifyDecision(ctx context.Context, result domain.TickResult) error

	// NotifyStatus renders the periodic status report.
	NotifyStatus(ctx context.Context, report domain.StatusReport) error
}
