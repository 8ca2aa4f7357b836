package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mselser95/execution-harness/internal/aggregator"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InvalidSlippageValues are max_slippage values outside the accepted range.
//
//nolint:gochecknoglobals // Immutable probe set
var InvalidSlippageValues = []float64{0.6, 0.005, -0.1}

// RapidConnect opens n short-lived connections at once and holds each for hold.
// It passes when at least MinSuccessRatio of them open and close cleanly.
func (o *Orchestrator) RapidConnect(ctx context.Context, n int, hold time.Duration) (*Result, error) {
	return o.rapidConnect(ctx, o.newRun("", KindRapidConnect), n, hold)
}

func (o *Orchestrator) rapidConnect(ctx context.Context, r *run, n int, hold time.Duration) (*Result, error) {
	if n <= 0 {
		n = o.cfg.RapidConnections
	}
	if hold <= 0 {
		hold = o.cfg.RapidConnectHold
	}

	result := &Result{}
	errs := make([]error, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			errs[i] = o.opener.Probe(ctx, hold)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	for _, err := range errs {
		result.Probes.record(err)
	}

	result.Passed = result.Probes.Ratio() >= o.cfg.MinSuccessRatio
	result.note(fmt.Sprintf("clean connections %d/%d", result.Probes.Succeeded, result.Probes.Attempted))

	return r.finish(result), nil
}

// ReconnectAfterClose opens and closes a connection, then reconnects within
// ReconnectWindow.
func (o *Orchestrator) ReconnectAfterClose(ctx context.Context) (*Result, error) {
	return o.reconnectAfterClose(ctx, o.newRun("", KindReconnect))
}

func (o *Orchestrator) reconnectAfterClose(ctx context.Context, r *run) (*Result, error) {
	result := &Result{}

	rctx, cancel := context.WithTimeout(ctx, o.cfg.ReconnectWindow)
	defer cancel()

	err := o.opener.Reconnect(rctx, o.cfg.RapidConnectHold)
	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	result.Probes.record(err)
	result.Passed = err == nil
	if err != nil {
		result.note(fmt.Sprintf("reconnect within %s failed: %v", o.cfg.ReconnectWindow, err))
	} else {
		result.note(fmt.Sprintf("reconnected within %s", o.cfg.ReconnectWindow))
	}

	return r.finish(result), nil
}

// InvalidSlippage submits orders with out-of-range max_slippage. Each must be
// rejected with a client-error status.
func (o *Orchestrator) InvalidSlippage(ctx context.Context) (*Result, error) {
	return o.invalidSlippage(ctx, o.newRun("", KindInvalidSlippage))
}

func (o *Orchestrator) invalidSlippage(ctx context.Context, r *run) (*Result, error) {
	result := &Result{}

	for _, slippage := range InvalidSlippageValues {
		req := marketOrder("SOL", "USDC", 10, slippage)

		resp, err := o.submitter.SubmitOrder(ctx, req, o.cfg.ProbeSubmitTimeout)
		if ctx.Err() != nil {
			return r.fail(result, ctx.Err())
		}

		var subErr *types.SubmissionError
		switch {
		case err == nil:
			err = fmt.Errorf("max_slippage %g accepted as order %s", slippage, resp.OrderID)
		case errors.As(err, &subErr) && subErr.Rejected():
			result.note(fmt.Sprintf("max_slippage %g rejected (status %d)", slippage, subErr.StatusCode))
			err = nil
		default:
			err = fmt.Errorf("max_slippage %g: %w", slippage, err)
		}

		if err != nil {
			r.logger.Warn("invalid-slippage-not-rejected", zap.Float64("max-slippage", slippage), zap.Error(err))
		}
		result.Probes.record(err)
	}

	result.Passed = result.Probes.Failed() == 0

	return r.finish(result), nil
}

type edgeProbe struct {
	name string
	req  types.OrderRequest
}

// EdgeCaseProbes submits malformed and extreme orders and records how the service
// answers. An accepted large order is tracked for LargeOrderWindow; a channel error
// while tracking it fails the scenario.
func (o *Orchestrator) EdgeCaseProbes(ctx context.Context) (*Result, error) {
	return o.edgeCaseProbes(ctx, o.newRun("", KindEdgeCases))
}

func (o *Orchestrator) edgeCaseProbes(ctx context.Context, r *run) (*Result, error) {
	result := &Result{Passed: true}

	probes := []edgeProbe{
		{name: "empty-token-in", req: marketOrder("", "USDC", 10, 0.03)},
		{name: "empty-token-out", req: marketOrder("SOL", "", 10, 0.03)},
		{name: "unknown-token", req: marketOrder("INVALID", "USDC", 10, 0.03)},
		{name: "zero-amount", req: marketOrder("SOL", "USDC", 0, 0.03)},
	}

	for _, probe := range probes {
		resp, err := o.submitter.SubmitOrder(ctx, probe.req, o.cfg.ProbeSubmitTimeout)
		if ctx.Err() != nil {
			return r.fail(result, ctx.Err())
		}
		result.Probes.record(probeErr(err))

		if err != nil {
			result.note(fmt.Sprintf("%s: %v", probe.name, err))
			continue
		}
		result.note(fmt.Sprintf("%s: accepted as order %s", probe.name, resp.OrderID))
	}

	order, err := r.trackOrder(ctx, marketOrder("SOL", "USDC", 1000000, 0.05), trackOptions{
		label:         "large-amount",
		submitTimeout: o.cfg.ProbeSubmitTimeout,
		budget:        o.cfg.LargeOrderWindow,
		graceful:      true,
	})
	result.Orders = append(result.Orders, order)
	if err != nil {
		return r.fail(result, err)
	}
	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}
	result.Probes.record(probeErr(order.Err))

	switch order.Outcome {
	case OutcomeSubmissionError:
		result.note(fmt.Sprintf("large-amount: %v", order.Err))
	case OutcomeChannelError:
		result.Passed = false
		result.note(fmt.Sprintf("large-amount: order %s broke its channel: %v", order.OrderID, order.Err))
	case OutcomeFailed:
		result.note(fmt.Sprintf("large-amount: order %s failed gracefully: %s", order.OrderID, order.Reason))
	default:
		result.note(fmt.Sprintf("large-amount: order %s resolved %s", order.OrderID, order.Outcome))
	}

	return r.finish(result), nil
}

// probeErr keeps only errors that mean the service did not answer.
func probeErr(err error) error {
	var subErr *types.SubmissionError
	if errors.As(err, &subErr) && subErr.StatusCode != 0 {
		return nil
	}
	return err
}

// HighFrequencySubmission fires n submissions at once with a short timeout. It
// passes when at least HighFrequencyMinRatio of them are accepted.
func (o *Orchestrator) HighFrequencySubmission(ctx context.Context, n int) (*Result, error) {
	return o.highFrequencySubmission(ctx, o.newRun("", KindHighFrequency), n)
}

func (o *Orchestrator) highFrequencySubmission(ctx context.Context, r *run, n int) (*Result, error) {
	if n <= 0 {
		n = o.cfg.HighFrequencyOrders
	}

	result := &Result{}
	errs := make([]error, n)
	start := time.Now()

	var g errgroup.Group
	for i := 0; i < n; i++ {
		req := marketOrder("SOL", "USDC", rand.Float64()*5+1, 0.03) //nolint:gosec // Order size only
		g.Go(func() error {
			_, errs[i] = o.submitter.SubmitOrder(ctx, req, o.cfg.HighFrequencySubmitTimeout)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	for _, err := range errs {
		result.Probes.record(err)
	}

	result.Passed = result.Probes.Ratio() >= o.cfg.HighFrequencyMinRatio
	result.note(fmt.Sprintf("accepted %d/%d in %s (%.1f req/min)",
		result.Probes.Succeeded, n, elapsed.Round(time.Millisecond),
		aggregator.RequestsPerMinute(result.Probes.Succeeded, elapsed)))

	return r.finish(result), nil
}
