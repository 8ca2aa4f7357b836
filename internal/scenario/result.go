package scenario

import (
	"time"

	"github.com/mselser95/execution-harness/internal/aggregator"
	"github.com/mselser95/execution-harness/pkg/types"
)

// Kind identifies a scenario.
type Kind string

// Scenario kinds.
const (
	KindSingleOrder     Kind = "single_order"
	KindConcurrent      Kind = "concurrent_orders"
	KindAckTimeout      Kind = "ack_timeout"
	KindRapidConnect    Kind = "rapid_connect"
	KindReconnect       Kind = "reconnect"
	KindInvalidSlippage Kind = "invalid_slippage"
	KindEdgeCases       Kind = "edge_cases"
	KindHighFrequency   Kind = "high_frequency"
	KindDataConsistency Kind = "data_consistency"
)

// Outcome is how one tracked order resolved.
type Outcome string

// Order outcomes.
const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeFailed          Outcome = "failed"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeSubmissionError Outcome = "submission_error"
	OutcomeChannelError    Outcome = "channel_error"
	OutcomeCancelled       Outcome = "cancelled"
)

// Completed reports whether the order reached a terminal status.
func (o Outcome) Completed() bool {
	return o == OutcomeConfirmed || o == OutcomeFailed
}

// OrderResult is the resolution of one tracked order.
type OrderResult struct {
	Label          string
	Request        types.OrderRequest
	OrderID        string // Empty when submission failed
	Statuses       []types.Status
	Terminal       bool
	TxHash         string
	ExecutionPrice *float64
	Reason         string
	Outcome        Outcome
	CompletionTime time.Duration // Submission start to terminal status, or to resolution
	Violations     []types.Violation
	Err            error // Submission or channel error
}

// ProbeTally counts connection or submission probes.
type ProbeTally struct {
	Attempted int
	Succeeded int
	Errors    []string
}

// Failed returns the number of unsuccessful probes.
func (p ProbeTally) Failed() int {
	return p.Attempted - p.Succeeded
}

// Ratio returns the fraction of successful probes.
func (p ProbeTally) Ratio() float64 {
	return aggregator.Ratio(p.Succeeded, p.Attempted)
}

func (p *ProbeTally) record(err error) {
	p.Attempted++
	if err != nil {
		p.Errors = append(p.Errors, err.Error())
		return
	}
	p.Succeeded++
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario   string
	Kind       Kind
	Passed     bool
	Orders     []*OrderResult
	Probes     ProbeTally
	Violations []types.Violation
	Notes      []string
	Summary    aggregator.Summary
	StartedAt  time.Time
	Duration   time.Duration
	Err        error // Fatal error that aborted the scenario
}

func (r *Result) note(msg string) {
	r.Notes = append(r.Notes, msg)
}

func (r *Result) collectViolations() {
	r.Violations = r.Violations[:0]
	for _, order := range r.Orders {
		r.Violations = append(r.Violations, order.Violations...)
	}
}

func (r *Result) summarize() {
	samples := make([]aggregator.Sample, 0, len(r.Orders))
	for _, order := range r.Orders {
		samples = append(samples, aggregator.Sample{
			ResponseTime: order.CompletionTime,
			Completed:    order.Outcome.Completed(),
			Confirmed:    order.Outcome == OutcomeConfirmed,
			Statuses:     order.Statuses,
		})
	}
	r.Summary = aggregator.Summarize(samples, r.Duration)
}

// ConfirmedCount returns the number of orders that resolved confirmed.
func (r *Result) ConfirmedCount() int {
	count := 0
	for _, order := range r.Orders {
		if order.Outcome == OutcomeConfirmed {
			count++
		}
	}
	return count
}

// contractViolations returns violations other than timeouts.
func contractViolations(violations []types.Violation) []types.Violation {
	var result []types.Violation
	for _, v := range violations {
		if v.Kind() != types.ViolationTimeout {
			result = append(result, v)
		}
	}
	return result
}

// Report is the serializable form of a Result.
type Report struct {
	Scenario   string             `json:"scenario"`
	Kind       Kind               `json:"kind"`
	Passed     bool               `json:"passed"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMs int64              `json:"duration_ms"`
	Orders     []OrderReport      `json:"orders"`
	Probes     ProbeReport        `json:"probes"`
	Violations []ViolationReport  `json:"violations"`
	Notes      []string           `json:"notes,omitempty"`
	Summary    aggregator.Summary `json:"summary"`
	Error      string             `json:"error,omitempty"`
}

// OrderReport is the serializable form of an OrderResult.
type OrderReport struct {
	Label            string             `json:"label,omitempty"`
	Request          types.OrderRequest `json:"request"`
	OrderID          string             `json:"order_id,omitempty"`
	Statuses         []types.Status     `json:"statuses"`
	Outcome          Outcome            `json:"outcome"`
	TxHash           string             `json:"tx_hash,omitempty"`
	ExecutionPrice   *float64           `json:"execution_price,omitempty"`
	Reason           string             `json:"reason,omitempty"`
	CompletionTimeMs int64              `json:"completion_time_ms"`
	Error            string             `json:"error,omitempty"`
}

// ProbeReport is the serializable form of a ProbeTally.
type ProbeReport struct {
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Errors    []string `json:"errors,omitempty"`
}

// ViolationReport is one serialized violation.
type ViolationReport struct {
	Kind    string `json:"kind"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// Report converts r into its serializable form.
func (r *Result) Report() Report {
	report := Report{
		Scenario:   r.Scenario,
		Kind:       r.Kind,
		Passed:     r.Passed,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Orders:     make([]OrderReport, 0, len(r.Orders)),
		Probes: ProbeReport{
			Attempted: r.Probes.Attempted,
			Succeeded: r.Probes.Succeeded,
			Errors:    r.Probes.Errors,
		},
		Violations: make([]ViolationReport, 0, len(r.Violations)),
		Notes:      r.Notes,
		Summary:    r.Summary,
	}

	if r.Err != nil {
		report.Error = r.Err.Error()
	}

	for _, order := range r.Orders {
		or := OrderReport{
			Label:            order.Label,
			Request:          order.Request,
			OrderID:          order.OrderID,
			Statuses:         order.Statuses,
			Outcome:          order.Outcome,
			TxHash:           order.TxHash,
			ExecutionPrice:   order.ExecutionPrice,
			Reason:           order.Reason,
			CompletionTimeMs: order.CompletionTime.Milliseconds(),
		}
		if order.Err != nil {
			or.Error = order.Err.Error()
		}
		report.Orders = append(report.Orders, or)
	}

	for _, v := range r.Violations {
		report.Violations = append(report.Violations, ViolationReport{
			Kind:    v.Kind(),
			OrderID: v.Order(),
			Message: v.Error(),
		})
	}

	return report
}
