package mockservice

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/execution-harness/pkg/types"
)

// Step is one scripted status push. Delay is waited before the event is published.
type Step struct {
	Delay time.Duration
	Event types.StatusEvent
}

// Script decides the status flow for an accepted order. Events left without an
// OrderID are stamped with the order's id; events naming another id are published
// as-is, which lets tests inject stray traffic.
type Script func(orderID string, req types.OrderRequest) []Step

// DexOptions tune the simulated router.
type DexOptions struct {
	// Pace scales every delay; 1.0 reproduces router timings, 0.01 is test speed.
	Pace float64
	// ExecutionSuccessRate is the chance a single execution attempt lands.
	ExecutionSuccessRate float64
	// MaxPriceMove bounds the simulated price movement as a fraction, e.g. 0.02.
	MaxPriceMove float64
	// ExecutionAttempts is how many times execution is tried before failing.
	ExecutionAttempts int
}

// DefaultDexOptions mirror the router this service stands in for.
func DefaultDexOptions() DexOptions {
	return DexOptions{
		Pace:                 1.0,
		ExecutionSuccessRate: 0.7,
		MaxPriceMove:         0.02,
		ExecutionAttempts:    3,
	}
}

// DexScript simulates quote routing, a slippage check and execution with retries.
func DexScript(opts DexOptions) Script {
	if opts.Pace <= 0 {
		opts.Pace = 1.0
	}
	if opts.ExecutionAttempts <= 0 {
		opts.ExecutionAttempts = 3
	}

	pace := func(ms int) time.Duration {
		return time.Duration(float64(ms) * opts.Pace * float64(time.Millisecond))
	}

	return func(orderID string, req types.OrderRequest) []Step {
		steps := []Step{
			{Event: types.StatusEvent{Status: types.StatusPending}},
			{Delay: pace(200), Event: types.StatusEvent{Status: types.StatusRouting}},
		}

		bestPrice := math.Max(quote(220.0), quote(218.0))
		move := (rand.Float64()*2 - 1) * opts.MaxPriceMove
		finalPrice := bestPrice * (1 + move)

		if math.Abs(move) > req.MaxSlippage {
			reason := fmt.Sprintf("Price moved %.2f%% (max allowed: %.2f%%)", math.Abs(move)*100, req.MaxSlippage*100)
			return append(steps, Step{
				Delay: pace(400),
				Event: types.StatusEvent{Status: types.StatusFailed, Reason: reason},
			})
		}

		txHash := NewTxHash()
		steps = append(steps,
			Step{Delay: pace(400), Event: types.StatusEvent{Status: types.StatusBuilding}},
			Step{Delay: pace(500), Event: types.StatusEvent{Status: types.StatusSubmitted, TxHash: txHash}},
		)

		wait := pace(300)
		for attempt := 1; attempt <= opts.ExecutionAttempts; attempt++ {
			wait += pace(200)
			if rand.Float64() < opts.ExecutionSuccessRate {
				return append(steps, Step{
					Delay: wait,
					Event: types.StatusEvent{
						Status:         types.StatusConfirmed,
						TxHash:         txHash,
						ExecutionPrice: types.Float64Ptr(finalPrice),
					},
				})
			}
			if attempt < opts.ExecutionAttempts {
				wait += pace(1000 << (attempt - 1))
			}
		}

		return append(steps, Step{
			Delay: wait,
			Event: types.StatusEvent{
				Status: types.StatusFailed,
				Reason: fmt.Sprintf("Execution failed after %d retry attempts", opts.ExecutionAttempts),
			},
		})
	}
}

// ConfirmScript walks every transient status and confirms.
func ConfirmScript(step time.Duration) Script {
	return func(orderID string, req types.OrderRequest) []Step {
		txHash := NewTxHash()
		return []Step{
			{Event: types.StatusEvent{Status: types.StatusPending}},
			{Delay: step, Event: types.StatusEvent{Status: types.StatusRouting}},
			{Delay: step, Event: types.StatusEvent{Status: types.StatusBuilding}},
			{Delay: step, Event: types.StatusEvent{Status: types.StatusSubmitted, TxHash: txHash}},
			{Delay: step, Event: types.StatusEvent{
				Status:         types.StatusConfirmed,
				TxHash:         txHash,
				ExecutionPrice: types.Float64Ptr(req.Amount * 14.2),
			}},
		}
	}
}

// FailScript routes the order and fails it with reason.
func FailScript(step time.Duration, reason string) Script {
	return func(orderID string, req types.OrderRequest) []Step {
		return []Step{
			{Event: types.StatusEvent{Status: types.StatusPending}},
			{Delay: step, Event: types.StatusEvent{Status: types.StatusRouting}},
			{Delay: step, Event: types.StatusEvent{Status: types.StatusFailed, Reason: reason}},
		}
	}
}

// StallScript publishes the given statuses and then goes silent.
func StallScript(step time.Duration, statuses ...types.Status) Script {
	return func(orderID string, req types.OrderRequest) []Step {
		steps := make([]Step, 0, len(statuses))
		for i, status := range statuses {
			delay := step
			if i == 0 {
				delay = 0
			}
			steps = append(steps, Step{Delay: delay, Event: types.StatusEvent{Status: status}})
		}
		return steps
	}
}

// NewTxHash returns a 0x-prefixed 32-character hex transaction hash.
func NewTxHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func quote(base float64) float64 {
	return base * (0.995 + rand.Float64()*0.01)
}
