package types

import (
	"fmt"
	"strings"
	"time"
)

// Violation kinds reported by the lifecycle validator.
const (
	ViolationTimeout         = "timeout"
	ViolationIncompleteFlow  = "incomplete_flow"
	ViolationDataConsistency = "data_consistency"
)

// Violation is a breach of the execution service contract observed on one order.
// Violations are collected and reported, they never abort a run.
type Violation interface {
	error
	Kind() string
	Order() string
}

// SubmissionError is a failed synchronous submission: transport error, timeout,
// non-2xx response or a response without an order id.
type SubmissionError struct {
	StatusCode int    // HTTP status code, 0 when no response was received
	Message    string // Response body or failure description
	Err        error  // Underlying error if available
}

func (e *SubmissionError) Error() string {
	if e.StatusCode >= 300 {
		return fmt.Sprintf("submission rejected (status %d): %s", e.StatusCode, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("submission failed (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("submission failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("submission failed: %s", e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the service answered with a client-error status.
func (e *SubmissionError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ChannelError is a connection-level failure on one order's push channel.
type ChannelError struct {
	OrderID string
	Op      string // dial, register, read
	Err     error
}

func (e *ChannelError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("channel %s (order %s): %v", e.Op, e.OrderID, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// TimeoutViolation means no terminal status was observed within the budget.
type TimeoutViolation struct {
	OrderID    string
	Budget     time.Duration
	Elapsed    time.Duration
	LastStatus Status // Empty when nothing was received
}

func (e *TimeoutViolation) Error() string {
	last := string(e.LastStatus)
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("order %s: no terminal status within %s (elapsed %s, last status %s)",
		e.OrderID, e.Budget, e.Elapsed.Round(time.Millisecond), last)
}

func (e *TimeoutViolation) Kind() string  { return ViolationTimeout }
func (e *TimeoutViolation) Order() string { return e.OrderID }

// IncompleteFlowViolation means a full-lifecycle order skipped transient statuses.
type IncompleteFlowViolation struct {
	OrderID  string
	Missing  []Status
	Observed []Status
}

func (e *IncompleteFlowViolation) Error() string {
	return fmt.Sprintf("order %s: incomplete status flow, missing %s (observed %s)",
		e.OrderID, joinStatuses(e.Missing), joinStatuses(e.Observed))
}

func (e *IncompleteFlowViolation) Kind() string  { return ViolationIncompleteFlow }
func (e *IncompleteFlowViolation) Order() string { return e.OrderID }

// DataConsistencyViolation is an event payload that contradicts its status.
type DataConsistencyViolation struct {
	OrderID string
	Status  Status
	Field   string
	Detail  string
}

func (e *DataConsistencyViolation) Error() string {
	return fmt.Sprintf("order %s: inconsistent %s on %s event: %s", e.OrderID, e.Field, e.Status, e.Detail)
}

func (e *DataConsistencyViolation) Kind() string  { return ViolationDataConsistency }
func (e *DataConsistencyViolation) Order() string { return e.OrderID }

// DuplicateRegistrationError means an order id was registered twice in one run.
// This indicates a correlation bug and is fatal to the run.
type DuplicateRegistrationError struct {
	OrderID string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("order %s is already registered", e.OrderID)
}

// IdentifierMismatchError means an event for another order reached a validator.
// This is a harness invariant failure, not a service contract failure.
type IdentifierMismatchError struct {
	Expected string
	Actual   string
}

func (e *IdentifierMismatchError) Error() string {
	return fmt.Sprintf("event for order %q consumed while validating order %q", e.Actual, e.Expected)
}

func joinStatuses(statuses []Status) string {
	if len(statuses) == 0 {
		return "[]"
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
