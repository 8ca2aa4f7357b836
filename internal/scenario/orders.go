package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/execution-harness/internal/aggregator"
	"github.com/mselser95/execution-harness/pkg/types"
	"golang.org/x/sync/errgroup"
)

// ConcurrentRequests builds n market orders of varying size and slippage.
func ConcurrentRequests(n int) []types.OrderRequest {
	shapes := []struct {
		amount   float64
		slippage float64
	}{
		{5.0, 0.02},
		{8.5, 0.03},
		{12.0, 0.025},
		{3.5, 0.04},
		{20.0, 0.035},
	}

	reqs := make([]types.OrderRequest, n)
	for i := range reqs {
		shape := shapes[i%len(shapes)]
		reqs[i] = marketOrder("SOL", "USDC", shape.amount, shape.slippage)
	}
	return reqs
}

// LifecycleRequest is the order the full-lifecycle scenario submits.
func LifecycleRequest() types.OrderRequest {
	return marketOrder("SOL", "USDC", 15.5, 0.04)
}

func marketOrder(tokenIn string, tokenOut string, amount float64, slippage float64) types.OrderRequest {
	return types.OrderRequest{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      amount,
		OrderType:   types.OrderTypeMarket,
		MaxSlippage: slippage,
	}
}

// SingleOrder follows one order through its full lifecycle. It passes only when the
// order confirms with every transient status observed and no violations.
func (o *Orchestrator) SingleOrder(ctx context.Context, req types.OrderRequest) (*Result, error) {
	return o.singleOrder(ctx, o.newRun("", KindSingleOrder), req)
}

func (o *Orchestrator) singleOrder(ctx context.Context, r *run, req types.OrderRequest) (*Result, error) {
	result := &Result{}

	order, err := r.trackOrder(ctx, req, trackOptions{
		label:         "lifecycle",
		submitTimeout: o.cfg.SubmitTimeout,
		budget:        o.cfg.OrderTimeout,
		fullLifecycle: true,
	})
	result.Orders = append(result.Orders, order)
	if err != nil {
		return r.fail(result, err)
	}
	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	result.Passed = order.Outcome == OutcomeConfirmed && len(order.Violations) == 0
	result.note(fmt.Sprintf("status flow: %v", order.Statuses))
	if order.Err != nil {
		result.note(order.Err.Error())
	}

	return r.finish(result), nil
}

// ConcurrentOrders submits reqs back-to-back and tracks every order independently.
// All orders settle before the scenario is judged. It fails when the confirmed
// ratio is below MinSuccessRatio or any contract violation was observed.
func (o *Orchestrator) ConcurrentOrders(ctx context.Context, reqs []types.OrderRequest) (*Result, error) {
	return o.concurrentOrders(ctx, o.newRun("", KindConcurrent), reqs)
}

func (o *Orchestrator) concurrentOrders(ctx context.Context, r *run, reqs []types.OrderRequest) (*Result, error) {
	if len(reqs) == 0 {
		reqs = ConcurrentRequests(o.cfg.ConcurrentOrders)
	}

	result := &Result{}
	orders := make([]*OrderResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxInFlight > 0 {
		g.SetLimit(o.cfg.MaxInFlight)
	}

	for i, req := range reqs {
		g.Go(func() error {
			order, err := r.trackOrder(gctx, req, trackOptions{
				label:         fmt.Sprintf("order-%d", i+1),
				submitTimeout: o.cfg.SubmitTimeout,
				budget:        o.cfg.OrderTimeout,
			})
			orders[i] = order
			return err
		})
	}

	err := g.Wait()
	result.Orders = orders
	if err != nil {
		return r.fail(result, err)
	}
	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	confirmed := result.ConfirmedCount()
	ratio := aggregator.Ratio(confirmed, len(orders))

	var contract int
	for _, order := range orders {
		contract += len(contractViolations(order.Violations))
	}

	result.Passed = ratio >= o.cfg.MinSuccessRatio && contract == 0
	result.note(fmt.Sprintf("confirmed %d/%d (%.1f%%)", confirmed, len(orders), ratio*100))
	if contract > 0 {
		result.note(fmt.Sprintf("%d contract violations", contract))
	}

	return r.finish(result), nil
}

// AcknowledgmentTimeout tracks one order under a short window. Running out of the
// window while the channel is open is a graceful timeout; only submission and
// channel errors fail the scenario.
func (o *Orchestrator) AcknowledgmentTimeout(ctx context.Context, req types.OrderRequest, window time.Duration) (*Result, error) {
	return o.acknowledgmentTimeout(ctx, o.newRun("", KindAckTimeout), req, window)
}

func (o *Orchestrator) acknowledgmentTimeout(
	ctx context.Context,
	r *run,
	req types.OrderRequest,
	window time.Duration,
) (*Result, error) {
	if window <= 0 {
		window = o.cfg.AckTimeoutWindow
	}

	result := &Result{}

	order, err := r.trackOrder(ctx, req, trackOptions{
		label:         "ack-timeout",
		submitTimeout: o.cfg.SubmitTimeout,
		budget:        window,
		graceful:      true,
	})
	result.Orders = append(result.Orders, order)
	if err != nil {
		return r.fail(result, err)
	}
	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	switch order.Outcome {
	case OutcomeTimeout:
		result.Passed = true
		result.note(fmt.Sprintf("graceful timeout after %s", window))
	case OutcomeConfirmed:
		result.Passed = true
		result.note("completed within window")
	case OutcomeFailed:
		result.Passed = true
		result.note(fmt.Sprintf("completed within window with failed status: %s", order.Reason))
	default:
		result.Passed = false
		result.note(fmt.Sprintf("%s: %v", order.Outcome, order.Err))
	}

	return r.finish(result), nil
}

// DataConsistency tracks one order and checks identifiers and payloads only.
func (o *Orchestrator) DataConsistency(ctx context.Context, req types.OrderRequest) (*Result, error) {
	return o.dataConsistency(ctx, o.newRun("", KindDataConsistency), req)
}

func (o *Orchestrator) dataConsistency(ctx context.Context, r *run, req types.OrderRequest) (*Result, error) {
	result := &Result{}

	order, err := r.trackOrder(ctx, req, trackOptions{
		label:         "consistency",
		submitTimeout: o.cfg.SubmitTimeout,
		budget:        o.cfg.OrderTimeout,
	})
	result.Orders = append(result.Orders, order)
	if err != nil {
		return r.fail(result, err)
	}
	if ctx.Err() != nil {
		return r.fail(result, ctx.Err())
	}

	result.Passed = order.Terminal && len(order.Violations) == 0
	if order.Terminal {
		result.note(fmt.Sprintf("order %s: %s %s -> %s amount %g, price %g",
			order.OrderID, order.Outcome, req.TokenIn, req.TokenOut, req.Amount, priceOf(order)))
	} else {
		result.note(fmt.Sprintf("order %s did not reach a terminal status: %s", order.OrderID, order.Outcome))
	}

	return r.finish(result), nil
}

func priceOf(order *OrderResult) float64 {
	if order.ExecutionPrice == nil {
		return 0
	}
	return *order.ExecutionPrice
}
