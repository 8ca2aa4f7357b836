package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/execution-harness/pkg/types"
)

// MockSubmitter records submissions and answers them without a network.
type MockSubmitter struct {
	mu       sync.Mutex
	requests []types.OrderRequest
	timeouts []time.Duration
	counter  int

	// FixedOrderID, when set, is returned for every submission.
	FixedOrderID string
	// Err, when set, is returned for every submission.
	Err error
}

// NewMockSubmitter creates a mock submitter issuing sequential order ids.
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{}
}

// SubmitOrder records req and returns the next order id.
func (m *MockSubmitter) SubmitOrder(ctx context.Context, req types.OrderRequest, timeout time.Duration) (*types.SubmitResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.timeouts = append(m.timeouts, timeout)

	if err := ctx.Err(); err != nil {
		return nil, &types.SubmissionError{Message: "context done", Err: err}
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.counter++
	orderID := m.FixedOrderID
	if orderID == "" {
		orderID = fmt.Sprintf("mock-order-%d", m.counter)
	}

	return &types.SubmitResponse{OrderID: orderID, Status: types.StatusPending}, nil
}

// Requests returns every request submitted so far.
func (m *MockSubmitter) Requests() []types.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]types.OrderRequest, len(m.requests))
	copy(result, m.requests)
	return result
}

// Timeouts returns the timeout passed with each submission.
func (m *MockSubmitter) Timeouts() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]time.Duration, len(m.timeouts))
	copy(result, m.timeouts)
	return result
}
