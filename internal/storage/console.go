package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mselser95/execution-harness/internal/scenario"
	"go.uber.org/zap"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleStorage implements Storage by printing a plain summary to the console.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    os.Stdout,
		logger: logger,
	}
}

// StoreResult prints a scenario result.
func (c *ConsoleStorage) StoreResult(ctx context.Context, result *scenario.Result) error {
	verdict := "✅ PASSED"
	if !result.Passed {
		verdict = "❌ FAILED"
	}

	var b strings.Builder
	fmt.Fprintln(&b, "\n"+rule)
	fmt.Fprintf(&b, "%s  %s (%s)\n", verdict, result.Scenario, result.Kind)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Started:  %s\n", result.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Orders) > 0 {
		s := result.Summary
		fmt.Fprintln(&b, rule)
		fmt.Fprintf(&b, "📊 ORDERS\n")
		fmt.Fprintf(&b, "  Total:      %d (completed %d, confirmed %d, failed %d)\n",
			s.Total, s.Completed, s.Confirmed, s.Failed)
		fmt.Fprintf(&b, "  Success:    %.1f%%\n", s.SuccessRate*100)
		fmt.Fprintf(&b, "  Response:   avg %s, min %s, max %s\n",
			s.AvgResponse.Round(time.Millisecond), s.MinResponse.Round(time.Millisecond), s.MaxResponse.Round(time.Millisecond))
		fmt.Fprintf(&b, "  Throughput: %.1f req/min\n", s.RequestsPerMinute)

		for _, order := range result.Orders {
			fmt.Fprintf(&b, "  - %-14s %-36s %-16s %v\n", order.Label, order.OrderID, order.Outcome, order.Statuses)
		}
	}

	if result.Probes.Attempted > 0 {
		fmt.Fprintln(&b, rule)
		fmt.Fprintf(&b, "🔌 PROBES  %d/%d succeeded\n", result.Probes.Succeeded, result.Probes.Attempted)
		for _, msg := range result.Probes.Errors {
			fmt.Fprintf(&b, "  - %s\n", msg)
		}
	}

	if len(result.Violations) > 0 {
		fmt.Fprintln(&b, rule)
		fmt.Fprintf(&b, "⚠️  VIOLATIONS\n")
		for _, v := range result.Violations {
			fmt.Fprintf(&b, "  [%s] %s\n", v.Kind(), v.Error())
		}
	}

	if len(result.Notes) > 0 {
		fmt.Fprintln(&b, rule)
		for _, note := range result.Notes {
			fmt.Fprintf(&b, "  %s\n", note)
		}
	}

	if result.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", result.Err)
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(c.out, b.String())
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
