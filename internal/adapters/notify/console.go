// Package notify renders agent decisions and status reports for an
// operator terminal.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"deltabot/internal/domain"
)

// Console implements ports.Notifier.
type Console struct {
	out     io.Writer
	verbose bool
}

// NewConsole creates a notifier that writes to stdout. verbose includes
// skipped ticks in the output; otherwise only executions, closes and
// pauses are printed.
func NewConsole(verbose bool) *Console {
	return &Console{out: os.Stdout, verbose: verbose}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, verbose bool) *Console {
	return &Console{out: w, verbose: verbose}
}

// NotifyDecision prints one processed tick as a compact line.
func (c *Console) NotifyDecision(_ context.Context, res domain.TickResult) error {
	now := time.Now().Format("15:04:05")

	for _, closed := range res.Closed {
		fmt.Fprintf(c.out, "[%s] %s CLOSE %s %s pnl$%+.4f @%.2f\n",
			now, closed.Symbol, closed.Side, closed.ExitReason, closed.PnL, closed.ExitPrice)
	}

	switch res.Action {
	case domain.TickExecute:
		p := res.Position
		fmt.Fprintf(c.out, "[%s] %s OPEN %s size$%.2f @%.2f conf%.2f sl%.2f tp%.2f (%s)\n",
			now, p.Symbol, p.Side, p.Size, p.EntryPrice, p.Confidence,
			p.StopLoss, p.TakeProfit, res.Duration.Round(time.Millisecond))

	case domain.TickPause:
		fmt.Fprintf(c.out, "[%s] %s PAUSE %s\n", now, res.Symbol, res.Reason)

	case domain.TickSkip:
		if c.verbose {
			fmt.Fprintf(c.out, "[%s] %s skip: %s\n", now, res.Symbol, res.Reason)
		}
	}
	return nil
}

// NotifyStatus renders the periodic status table.
func (c *Console) NotifyStatus(_ context.Context, report domain.StatusReport) error {
	mode := string(report.Mode)
	if len(report.PauseReasons) > 0 {
		mode += " (" + strings.Join(report.PauseReasons, ", ") + ")"
	}
	tag := "LIVE"
	if report.Preview {
		tag = "PAPER"
	}
	fmt.Fprintf(c.out, "\n[%s] %s | %s | up %s\n",
		report.GeneratedAt.Format("15:04:05"), tag, mode, report.Uptime.Round(time.Second))

	table := tablewriter.NewWriter(c.out)
	table.Header("Balance", "Daily PnL", "Trades", "Open", "Win rate", "Cycle", "Progress", "Errors")
	table.Append(
		fmt.Sprintf("$%.2f", report.Balance),
		fmt.Sprintf("$%+.2f", report.DailyPnL),
		fmt.Sprintf("%d", report.DailyTrades),
		fmt.Sprintf("%d", report.OpenPositions),
		fmt.Sprintf("%.1f%%", report.WinRate),
		fmt.Sprintf("#%d $%.0f→$%.0f", report.Cycle.Completed+1, report.Cycle.Start, report.Cycle.Target),
		fmt.Sprintf("%.1f%%", report.Cycle.ProgressPct),
		fmt.Sprintf("%d", report.ErrorCount),
	)
	table.Render()

	if len(report.Weights) > 0 {
		var sb strings.Builder
		sb.WriteString("  weights:")
		for name, w := range report.Weights {
			fmt.Fprintf(&sb, " %s=%.2f", name, w)
		}
		fmt.Fprintln(c.out, sb.String())
	}
	return nil
}

// RenderCycles prints completed compound cycles, newest first.
func RenderCycles(w io.Writer, cycles []domain.CycleRecord) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "no completed cycles")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Start", "End", "Target", "Gain", "Gain %", "Trades", "Completed")
	for _, c := range cycles {
		table.Append(
			fmt.Sprintf("%d", c.Number),
			fmt.Sprintf("$%.2f", c.StartBalance),
			fmt.Sprintf("$%.2f", c.EndBalance),
			fmt.Sprintf("$%.2f", c.TargetBalance),
			fmt.Sprintf("$%.2f", c.GainAmount),
			fmt.Sprintf("%.1f%%", c.GainPct),
			fmt.Sprintf("%d", c.TradesInCycle),
			c.CompletedAt.Format("2006-01-02 15:04"),
		)
	}
	table.Render()
}
