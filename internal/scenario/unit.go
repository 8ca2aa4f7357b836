package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/mselser95/execution-harness/internal/lifecycle"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
)

var errStreamEnded = errors.New("stream ended before terminal status")

// trackOptions parameterizes one per-order unit.
type trackOptions struct {
	label         string
	submitTimeout time.Duration
	budget        time.Duration // Hard bound from submission start to resolution
	fullLifecycle bool
	// graceful treats running out of budget as an expected outcome rather than
	// a contract violation.
	graceful bool
}

// trackOrder submits req and follows it to resolution. The returned error is
// reserved for fatal invariant breaches; every other failure resolves the unit.
func (r *run) trackOrder(ctx context.Context, req types.OrderRequest, opts trackOptions) (*OrderResult, error) {
	result := &OrderResult{Label: opts.label, Request: req}
	start := time.Now()

	if opts.budget <= 0 {
		opts.budget = lifecycle.DefaultBudget
	}

	InFlightOrders.Inc()
	defer InFlightOrders.Dec()

	ack, err := r.o.submitter.SubmitOrder(ctx, req, opts.submitTimeout)
	if err != nil {
		result.Outcome = OutcomeSubmissionError
		result.Err = err
		result.CompletionTime = time.Since(start)
		r.record(result)
		return result, nil
	}

	result.OrderID = ack.OrderID
	logger := r.logger.With(zap.String("order-id", ack.OrderID))
	logger.Debug("order-submitted", zap.Duration("latency", time.Since(start)))

	tracked, err := r.correlator.Register(ack.OrderID)
	if err != nil {
		result.Err = err
		return result, err
	}
	defer r.correlator.Unregister(ack.OrderID)

	stream, err := r.o.opener.Open(ctx, ack.OrderID)
	if err != nil {
		result.Outcome = OutcomeChannelError
		result.Err = err
		result.CompletionTime = time.Since(start)
		r.record(result)
		return result, nil
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for event := range stream.Events() {
			r.correlator.Route(event)
		}
	}()

	remaining := opts.budget - time.Since(start)
	if remaining < 0 {
		remaining = 0
	}
	timer := time.NewTimer(remaining)

	select {
	case <-tracked.Done():
	case <-timer.C:
		result.Outcome = OutcomeTimeout
	case <-pumpDone:
		select {
		case <-tracked.Done():
		default:
			result.Outcome = OutcomeChannelError
			result.Err = stream.Err()
			if result.Err == nil {
				result.Err = &types.ChannelError{OrderID: ack.OrderID, Op: "read", Err: errStreamEnded}
			}
		}
	case <-ctx.Done():
		result.Outcome = OutcomeCancelled
		result.Err = ctx.Err()
	}
	timer.Stop()

	_ = stream.Close()
	<-pumpDone

	snap := tracked.Snapshot()
	result.Statuses = snap.Statuses
	result.Terminal = snap.Terminal
	result.CompletionTime = time.Since(start)

	if snap.Terminal {
		terminal := snap.TerminalEvent
		result.CompletionTime = snap.LastSeen.Sub(start)
		result.TxHash = terminal.TxHash
		result.ExecutionPrice = terminal.ExecutionPrice
		result.Reason = terminal.Reason
		result.Err = nil
		if terminal.Status == types.StatusConfirmed {
			result.Outcome = OutcomeConfirmed
		} else {
			result.Outcome = OutcomeFailed
		}
	}

	report, err := lifecycle.Validate(ack.OrderID, snap.Events, result.CompletionTime, lifecycle.Options{
		RequireFullLifecycle: opts.fullLifecycle,
		Budget:               opts.budget,
	})
	if err != nil {
		result.Err = err
		return result, err
	}

	result.Violations = report.Violations
	if r.expectedTimeout(result, opts) {
		result.Violations = contractViolations(report.Violations)
	}

	r.record(result)
	logger.Info("order-resolved",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("statuses", len(result.Statuses)),
		zap.Int("violations", len(result.Violations)),
		zap.Duration("duration", result.CompletionTime))

	return result, nil
}

// expectedTimeout reports whether a missing terminal status is already explained by
// the outcome, so it should not also be counted as a violation.
func (r *run) expectedTimeout(result *OrderResult, opts trackOptions) bool {
	switch result.Outcome {
	case OutcomeChannelError, OutcomeCancelled:
		return true
	case OutcomeTimeout:
		return opts.graceful
	default:
		return false
	}
}

func (r *run) record(result *OrderResult) {
	OrderOutcomesTotal.WithLabelValues(string(result.Outcome)).Inc()
	if result.Outcome.Completed() {
		OrderCompletionSeconds.Observe(result.CompletionTime.Seconds())
	}
	for _, v := range result.Violations {
		ViolationsTotal.WithLabelValues(v.Kind()).Inc()
	}

	if result.Err != nil && result.Outcome != OutcomeCancelled {
		r.logger.Warn("order-unresolved",
			zap.String("order-id", result.OrderID),
			zap.String("outcome", string(result.Outcome)),
			zap.Error(result.Err))
	}
}
