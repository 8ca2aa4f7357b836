// Package lifecycle checks an order's observed status sequence against the
// execution service contract.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mselser95/execution-harness/pkg/types"
)

// DefaultBudget is the terminal-status budget for a single full-lifecycle order.
const DefaultBudget = 30 * time.Second

// Options tune which checks Validate runs.
type Options struct {
	// RequireFullLifecycle demands pending, routing, building and submitted before
	// a confirmed terminal status.
	RequireFullLifecycle bool

	// Budget bounds the time from submission to terminal status. Zero disables the
	// elapsed-time check but a missing terminal is still a timeout.
	Budget time.Duration
}

// Report is the outcome of validating one order.
type Report struct {
	OrderID    string
	Statuses   []types.Status
	Terminal   *types.StatusEvent
	Violations []types.Violation
}

// Passed reports whether no violation was found.
func (r *Report) Passed() bool {
	return len(r.Violations) == 0
}

// HasTerminal reports whether a terminal status was observed.
func (r *Report) HasTerminal() bool {
	return r.Terminal != nil
}

// Confirmed reports whether the order ended confirmed.
func (r *Report) Confirmed() bool {
	return r.Terminal != nil && r.Terminal.Status == types.StatusConfirmed
}

// Validate checks events observed for orderID. elapsed is the time between
// submission and the terminal status, or until the order was abandoned.
//
// An event carrying another order's id aborts validation with
// *types.IdentifierMismatchError. Contract breaches are collected in the report.
func Validate(orderID string, events []types.StatusEvent, elapsed time.Duration, opts Options) (*Report, error) {
	report := &Report{
		OrderID:  orderID,
		Statuses: make([]types.Status, 0, len(events)),
	}

	for _, event := range events {
		if event.OrderID != orderID {
			return nil, &types.IdentifierMismatchError{Expected: orderID, Actual: event.OrderID}
		}
		report.Statuses = append(report.Statuses, event.Status)
	}

	v := &validation{orderID: orderID, report: report}

	v.checkOrdering(events)
	v.checkTerminal(events, elapsed, opts.Budget)

	if opts.RequireFullLifecycle && report.HasTerminal() {
		v.checkCompleteness(events)
	}

	for _, event := range events {
		v.checkPayload(event)
	}

	return report, nil
}

type validation struct {
	orderID string
	report  *Report
}

func (v *validation) add(violation types.Violation) {
	v.report.Violations = append(v.report.Violations, violation)
}

func (v *validation) inconsistent(status types.Status, field string, format string, args ...interface{}) {
	v.add(&types.DataConsistencyViolation{
		OrderID: v.orderID,
		Status:  status,
		Field:   field,
		Detail:  fmt.Sprintf(format, args...),
	})
}

// checkTerminal enforces exactly one terminal status inside the budget.
func (v *validation) checkTerminal(events []types.StatusEvent, elapsed time.Duration, budget time.Duration) {
	terminals := 0
	for i := range events {
		if !events[i].Status.IsTerminal() {
			continue
		}
		terminals++
		if terminals == 1 {
			terminal := events[i]
			v.report.Terminal = &terminal
		}
	}

	if terminals == 0 {
		var last types.Status
		if len(events) > 0 {
			last = events[len(events)-1].Status
		}
		v.add(&types.TimeoutViolation{OrderID: v.orderID, Budget: budget, Elapsed: elapsed, LastStatus: last})
		return
	}

	if terminals > 1 {
		v.inconsistent(v.report.Terminal.Status, "status", "%d terminal statuses observed, expected exactly one", terminals)
	}

	if budget > 0 && elapsed > budget {
		v.add(&types.TimeoutViolation{
			OrderID:    v.orderID,
			Budget:     budget,
			Elapsed:    elapsed,
			LastStatus: v.report.Terminal.Status,
		})
	}
}

// checkOrdering flags unknown statuses and statuses that move backwards.
func (v *validation) checkOrdering(events []types.StatusEvent) {
	highest := -1
	var highestStatus types.Status

	for _, event := range events {
		rank := event.Status.Rank()
		if rank < 0 {
			v.inconsistent(event.Status, "status", "unknown status %q", event.Status)
			continue
		}

		if rank < highest {
			v.inconsistent(event.Status, "status", "%s observed after %s", event.Status, highestStatus)
			continue
		}

		highest = rank
		highestStatus = event.Status
	}
}

// checkCompleteness requires every transient status before the terminal one.
func (v *validation) checkCompleteness(events []types.StatusEvent) {
	seen := make(map[types.Status]bool, len(types.LifecycleStatuses))
	for _, event := range events {
		if event.Status.IsTerminal() {
			break
		}
		seen[event.Status] = true
	}

	var missing []types.Status
	for _, status := range types.LifecycleStatuses {
		if !seen[status] {
			missing = append(missing, status)
		}
	}

	if len(missing) > 0 {
		v.add(&types.IncompleteFlowViolation{
			OrderID:  v.orderID,
			Missing:  missing,
			Observed: v.report.Statuses,
		})
	}
}

// checkPayload verifies the optional fields match the status they ride on.
func (v *validation) checkPayload(event types.StatusEvent) {
	switch event.Status {
	case types.StatusConfirmed:
		if event.ExecutionPrice == nil {
			v.inconsistent(event.Status, "execution_price", "missing")
		} else if *event.ExecutionPrice <= 0 {
			v.inconsistent(event.Status, "execution_price", "must be positive, got %g", *event.ExecutionPrice)
		}
		if event.TxHash == "" {
			v.inconsistent(event.Status, "tx_hash", "missing")
		}
		if event.Reason != "" {
			v.inconsistent(event.Status, "reason", "unexpected reason %q", event.Reason)
		}
	case types.StatusFailed:
		if event.Reason == "" {
			v.inconsistent(event.Status, "reason", "missing")
		}
		if event.ExecutionPrice != nil {
			v.inconsistent(event.Status, "execution_price", "unexpected price %g", *event.ExecutionPrice)
		}
	default:
		if event.ExecutionPrice != nil {
			v.inconsistent(event.Status, "execution_price", "unexpected price %g", *event.ExecutionPrice)
		}
		if event.Reason != "" {
			v.inconsistent(event.Status, "reason", "unexpected reason %q", event.Reason)
		}
	}

	if event.TxHash != "" {
		_, err := hexutil.Decode(event.TxHash)
		if err != nil {
			v.inconsistent(event.Status, "tx_hash", "%q is not 0x-prefixed hex: %v", event.TxHash, err)
		}
	}
}
