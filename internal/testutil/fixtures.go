package testutil

import (
	"time"

	"github.com/mselser95/execution-harness/pkg/types"
)

// CreateTestOrderRequest creates a market order request.
func CreateTestOrderRequest(tokenIn string, tokenOut string, amount float64, maxSlippage float64) types.OrderRequest {
	return types.OrderRequest{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      amount,
		OrderType:   types.OrderTypeMarket,
		MaxSlippage: maxSlippage,
	}
}

// SOLUSDCOrder is the canonical full-lifecycle order.
func SOLUSDCOrder() types.OrderRequest {
	return CreateTestOrderRequest("SOL", "USDC", 15.5, 0.04)
}

// CreateTestEvent creates a status event stamped with the current time.
func CreateTestEvent(orderID string, status types.Status) types.StatusEvent {
	return types.StatusEvent{
		OrderID:    orderID,
		Status:     status,
		ReceivedAt: time.Now(),
	}
}

// CreateFullLifecycle creates a complete, consistent confirmed flow for orderID.
func CreateFullLifecycle(orderID string, price float64) []types.StatusEvent {
	const txHash = "0x9f2c4e6a8b0d1f3e5a7c9b1d3f5e7a9c"

	submitted := CreateTestEvent(orderID, types.StatusSubmitted)
	submitted.TxHash = txHash

	confirmed := CreateTestEvent(orderID, types.StatusConfirmed)
	confirmed.TxHash = txHash
	confirmed.ExecutionPrice = types.Float64Ptr(price)

	return []types.StatusEvent{
		CreateTestEvent(orderID, types.StatusPending),
		CreateTestEvent(orderID, types.StatusRouting),
		CreateTestEvent(orderID, types.StatusBuilding),
		submitted,
		confirmed,
	}
}
