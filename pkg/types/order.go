package types

import (
	"fmt"
	"strings"
)

// OrderType is the execution style requested for an order.
type OrderType string

// Only market orders are exercised against the execution service.
const (
	OrderTypeMarket OrderType = "market"
)

// OrderRequest is the body of a submission call. It is built once per scenario step
// and never mutated afterwards.
type OrderRequest struct {
	TokenIn     string    `json:"token_in" yaml:"token_in"`
	TokenOut    string    `json:"token_out" yaml:"token_out"`
	Amount      float64   `json:"amount" yaml:"amount"`
	OrderType   OrderType `json:"order_type" yaml:"order_type"`
	MaxSlippage float64   `json:"max_slippage" yaml:"max_slippage"`
}

// SlippageBounds is the accepted max_slippage range, both ends exclusive.
type SlippageBounds struct {
	Min float64
	Max float64
}

// DefaultSlippageBounds matches the range the execution service accepts.
//
//nolint:gochecknoglobals // Immutable default
var DefaultSlippageBounds = SlippageBounds{Min: 0.01, Max: 0.5}

// Contains reports whether slippage lies inside the bounds.
func (b SlippageBounds) Contains(slippage float64) bool {
	return slippage > b.Min && slippage < b.Max
}

// Validate checks the request the way the execution service does.
// The harness itself never calls this before submitting; rejecting bad input is the
// service's job and is what the rejection scenarios assert.
func (r OrderRequest) Validate(bounds SlippageBounds) error {
	if strings.TrimSpace(r.TokenIn) == "" {
		return fmt.Errorf("token_in cannot be empty")
	}

	if strings.TrimSpace(r.TokenOut) == "" {
		return fmt.Errorf("token_out cannot be empty")
	}

	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %f", r.Amount)
	}

	if r.OrderType != OrderTypeMarket {
		return fmt.Errorf("unsupported order_type %q", r.OrderType)
	}

	if !bounds.Contains(r.MaxSlippage) {
		return fmt.Errorf("max_slippage must be strictly between %.3f and %.3f, got %f",
			bounds.Min, bounds.Max, r.MaxSlippage)
	}

	return nil
}

// SubmitResponse is the success body of a submission call.
type SubmitResponse struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
}
