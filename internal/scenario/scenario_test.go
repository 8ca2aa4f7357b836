package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mselser95/execution-harness/internal/execution"
	"github.com/mselser95/execution-harness/internal/mockservice"
	"github.com/mselser95/execution-harness/internal/testutil"
	"github.com/mselser95/execution-harness/pkg/types"
	"github.com/mselser95/execution-harness/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const step = 5 * time.Millisecond

func testConfig(submitter Submitter, opener ChannelOpener) Config {
	cfg := DefaultConfig()
	cfg.Submitter = submitter
	cfg.Opener = opener
	cfg.Logger = zap.NewNop()
	cfg.SubmitTimeout = 2 * time.Second
	cfg.ProbeSubmitTimeout = 2 * time.Second
	cfg.HighFrequencySubmitTimeout = 2 * time.Second
	cfg.OrderTimeout = 2 * time.Second
	cfg.AckTimeoutWindow = 200 * time.Millisecond
	cfg.LargeOrderWindow = 2 * time.Second
	cfg.RapidConnectHold = 10 * time.Millisecond
	cfg.ReconnectWindow = 2 * time.Second
	cfg.SuitePause = time.Millisecond
	return cfg
}

func newMockHarness(t *testing.T, svcCfg mockservice.Config) *Orchestrator {
	t.Helper()

	svc := testutil.NewMockExecutionService(svcCfg)
	t.Cleanup(svc.Close)

	client, err := execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL: svc.APIURL,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)

	dialer := websocket.NewDialer(websocket.Config{
		URL:                   svc.WSURL,
		DialTimeout:           2 * time.Second,
		WriteTimeout:          2 * time.Second,
		EventBufferSize:       16,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     100 * time.Millisecond,
		ReconnectBackoffMult:  2.0,
		ReconnectMaxAttempts:  3,
		Logger:                zap.NewNop(),
	})

	return New(testConfig(client, NewDialerOpener(dialer)))
}

// fakeStream replays a fixed set of events, then either ends or waits for Close.
type fakeStream struct {
	events chan types.StatusEvent
	err    error
	once   sync.Once
}

func (s *fakeStream) Events() <-chan types.StatusEvent { return s.events }
func (s *fakeStream) Err() error                       { return s.err }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

// fakeOpener hands out fakeStreams and fails every failEvery-th probe.
type fakeOpener struct {
	events    []types.StatusEvent
	ended     bool
	streamErr error
	openErr   error
	failEvery int64

	probes atomic.Int64
}

func (f *fakeOpener) Open(ctx context.Context, orderID string) (EventStream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}

	stream := &fakeStream{events: make(chan types.StatusEvent, len(f.events)), err: f.streamErr}
	for _, event := range f.events {
		event.OrderID = orderID
		stream.events <- event
	}
	if f.ended {
		stream.Close()
	}
	return stream, nil
}

func (f *fakeOpener) Probe(ctx context.Context, hold time.Duration) error {
	n := f.probes.Add(1)
	if f.failEvery > 0 && n%f.failEvery == 0 {
		return &types.ChannelError{Op: "dial", Err: errors.New("connection refused")}
	}
	return nil
}

func (f *fakeOpener) Reconnect(ctx context.Context, hold time.Duration) error {
	return nil
}

func event(status types.Status) types.StatusEvent {
	return types.StatusEvent{Status: status}
}

func confirmedEvent(price float64) types.StatusEvent {
	return types.StatusEvent{
		Status:         types.StatusConfirmed,
		TxHash:         "0x9f2c4e6a8b0d1f3e5a7c9b1d3f5e7a9c",
		ExecutionPrice: types.Float64Ptr(price),
	}
}

func TestSingleOrder_Confirmed(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{Script: mockservice.ConfirmScript(step)})

	result, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	assert.True(t, result.Passed, "notes: %v", result.Notes)
	assert.Equal(t, KindSingleOrder, result.Kind)
	require.Len(t, result.Orders, 1)

	order := result.Orders[0]
	assert.Equal(t, OutcomeConfirmed, order.Outcome)
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, []types.Status{
		types.StatusPending,
		types.StatusRouting,
		types.StatusBuilding,
		types.StatusSubmitted,
		types.StatusConfirmed,
	}, order.Statuses)
	assert.NotEmpty(t, order.TxHash)
	require.NotNil(t, order.ExecutionPrice)
	assert.Greater(t, *order.ExecutionPrice, 0.0)
	assert.Empty(t, result.Violations)

	assert.Equal(t, 1, result.Summary.Total)
	assert.Equal(t, 1, result.Summary.Confirmed)
	assert.Greater(t, result.Summary.AvgResponse, time.Duration(0))
}

func TestSingleOrder_FailedStatus(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{Script: mockservice.FailScript(step, "Price moved 2.40% (max allowed: 1.00%)")})

	result, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	order := result.Orders[0]
	assert.Equal(t, OutcomeFailed, order.Outcome)
	assert.Contains(t, order.Reason, "Price moved")
	require.Len(t, order.Violations, 1)
	var incomplete *types.IncompleteFlowViolation
	require.True(t, errors.As(order.Violations[0], &incomplete))
	assert.Equal(t, []types.Status{types.StatusBuilding, types.StatusSubmitted}, incomplete.Missing)
}

func TestSingleOrder_IncompleteFlow(t *testing.T) {
	opener := &fakeOpener{events: []types.StatusEvent{
		event(types.StatusPending),
		confirmedEvent(150),
	}}
	o := New(testConfig(testutil.NewMockSubmitter(), opener))

	result, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, OutcomeConfirmed, result.Orders[0].Outcome)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, types.ViolationIncompleteFlow, result.Violations[0].Kind())
}

func TestSingleOrder_Timeout(t *testing.T) {
	opener := &fakeOpener{events: []types.StatusEvent{event(types.StatusPending)}}
	cfg := testConfig(testutil.NewMockSubmitter(), opener)
	cfg.OrderTimeout = 50 * time.Millisecond
	o := New(cfg)

	result, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, OutcomeTimeout, result.Orders[0].Outcome)
	require.Len(t, result.Violations, 1)

	var timeout *types.TimeoutViolation
	require.True(t, errors.As(result.Violations[0], &timeout))
	assert.Equal(t, types.StatusPending, timeout.LastStatus)
}

func TestSingleOrder_SubmissionTimeoutIsPassed(t *testing.T) {
	submitter := testutil.NewMockSubmitter()
	o := New(testConfig(submitter, &fakeOpener{ended: true}))

	_, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{2 * time.Second}, submitter.Timeouts())
}

func TestConcurrentOrders_AllConfirmed(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{Script: mockservice.ConfirmScript(step)})

	result, err := o.ConcurrentOrders(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, result.Passed, "notes: %v", result.Notes)
	require.Len(t, result.Orders, 5)

	ids := make(map[string]bool)
	for _, order := range result.Orders {
		assert.Equal(t, OutcomeConfirmed, order.Outcome)
		assert.Equal(t, types.StatusConfirmed, order.Statuses[len(order.Statuses)-1])
		ids[order.OrderID] = true
	}
	assert.Len(t, ids, 5, "every order must be tracked under its own id")
	assert.Equal(t, 5, result.Summary.Confirmed)
	assert.InDelta(t, 1.0, result.Summary.SuccessRate, 1e-9)
}

func TestConcurrentOrders_BelowSuccessRatio(t *testing.T) {
	confirm := mockservice.ConfirmScript(step)
	fail := mockservice.FailScript(step, "Execution failed after 3 retry attempts")
	script := func(orderID string, req types.OrderRequest) []mockservice.Step {
		if req.Amount > 10 {
			return fail(orderID, req)
		}
		return confirm(orderID, req)
	}
	o := newMockHarness(t, mockservice.Config{Script: script})

	result, err := o.ConcurrentOrders(context.Background(), ConcurrentRequests(5))
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, 3, result.ConfirmedCount())
	assert.Equal(t, 5, result.Summary.Completed)
	assert.Empty(t, result.Violations)
}

func TestConcurrentOrders_NoOrders(t *testing.T) {
	cfg := testConfig(testutil.NewMockSubmitter(), &fakeOpener{ended: true})
	cfg.ConcurrentOrders = 0
	o := New(cfg)

	result, err := o.ConcurrentOrders(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Empty(t, result.Orders)
	assert.Contains(t, result.Notes, "confirmed 0/0 (0.0%)")
}

func TestConcurrentOrders_MaxInFlight(t *testing.T) {
	svc := testutil.NewMockExecutionService(mockservice.Config{Script: mockservice.ConfirmScript(step)})
	defer svc.Close()

	client, err := execution.NewOrderClient(&execution.OrderClientConfig{BaseURL: svc.APIURL})
	require.NoError(t, err)

	cfg := testConfig(client, NewDialerOpener(websocket.NewDialer(websocket.Config{
		URL:             svc.WSURL,
		DialTimeout:     2 * time.Second,
		WriteTimeout:    2 * time.Second,
		EventBufferSize: 16,
	})))
	cfg.MaxInFlight = 2
	o := New(cfg)

	result, err := o.ConcurrentOrders(context.Background(), ConcurrentRequests(4))
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 4, svc.Service.Orders())
}

func TestConcurrentOrders_DuplicateRegistrationIsFatal(t *testing.T) {
	submitter := testutil.NewMockSubmitter()
	submitter.FixedOrderID = "order-dup"
	o := New(testConfig(submitter, &fakeOpener{events: []types.StatusEvent{event(types.StatusPending)}}))

	result, err := o.ConcurrentOrders(context.Background(), ConcurrentRequests(2))
	require.Error(t, err)

	var dup *types.DuplicateRegistrationError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "order-dup", dup.OrderID)
	assert.False(t, result.Passed)
	assert.Equal(t, err, result.Err)
}

func TestAcknowledgmentTimeout(t *testing.T) {
	tests := []struct {
		name    string
		script  mockservice.Script
		outcome Outcome
	}{
		{
			name:    "graceful timeout",
			script:  mockservice.StallScript(step, types.StatusPending, types.StatusRouting),
			outcome: OutcomeTimeout,
		},
		{
			name:    "completes within window",
			script:  mockservice.ConfirmScript(step),
			outcome: OutcomeConfirmed,
		},
		{
			name:    "failed counts as completed",
			script:  mockservice.FailScript(step, "Execution failed after 3 retry attempts"),
			outcome: OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newMockHarness(t, mockservice.Config{Script: tt.script})

			result, err := o.AcknowledgmentTimeout(context.Background(), testutil.SOLUSDCOrder(), 0)
			require.NoError(t, err)

			assert.True(t, result.Passed, "notes: %v", result.Notes)
			assert.Equal(t, tt.outcome, result.Orders[0].Outcome)
			assert.Empty(t, result.Violations)
		})
	}
}

func TestAcknowledgmentTimeout_SubmissionError(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{RejectSubmissions: true})

	result, err := o.AcknowledgmentTimeout(context.Background(), testutil.SOLUSDCOrder(), 0)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	order := result.Orders[0]
	assert.Equal(t, OutcomeSubmissionError, order.Outcome)

	var subErr *types.SubmissionError
	require.True(t, errors.As(order.Err, &subErr))
	assert.Equal(t, 503, subErr.StatusCode)
}

func TestDataConsistency(t *testing.T) {
	t.Run("consistent payloads", func(t *testing.T) {
		o := newMockHarness(t, mockservice.Config{Script: mockservice.ConfirmScript(step)})

		result, err := o.DataConsistency(context.Background(), testutil.SOLUSDCOrder())
		require.NoError(t, err)
		assert.True(t, result.Passed, "notes: %v", result.Notes)
	})

	t.Run("confirmed without price", func(t *testing.T) {
		opener := &fakeOpener{events: []types.StatusEvent{
			event(types.StatusPending),
			{Status: types.StatusConfirmed, TxHash: "0x9f2c4e6a8b0d1f3e5a7c9b1d3f5e7a9c"},
		}}
		o := New(testConfig(testutil.NewMockSubmitter(), opener))

		result, err := o.DataConsistency(context.Background(), testutil.SOLUSDCOrder())
		require.NoError(t, err)

		assert.False(t, result.Passed)
		require.Len(t, result.Violations, 1)

		var inconsistent *types.DataConsistencyViolation
		require.True(t, errors.As(result.Violations[0], &inconsistent))
		assert.Equal(t, "execution_price", inconsistent.Field)
	})

	t.Run("dropped connection", func(t *testing.T) {
		o := newMockHarness(t, mockservice.Config{
			Script:               mockservice.ConfirmScript(step),
			DropConnectionsAfter: 2,
		})

		result, err := o.DataConsistency(context.Background(), testutil.SOLUSDCOrder())
		require.NoError(t, err)

		assert.False(t, result.Passed)
		order := result.Orders[0]
		assert.Equal(t, OutcomeChannelError, order.Outcome)

		var chErr *types.ChannelError
		require.True(t, errors.As(order.Err, &chErr))
		assert.Empty(t, result.Violations, "a channel error is not also a timeout")
	})
}

func TestTrackOrder_StreamEndedWithoutError(t *testing.T) {
	opener := &fakeOpener{events: []types.StatusEvent{event(types.StatusPending)}, ended: true}
	o := New(testConfig(testutil.NewMockSubmitter(), opener))

	result, err := o.DataConsistency(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	order := result.Orders[0]
	assert.Equal(t, OutcomeChannelError, order.Outcome)
	assert.ErrorIs(t, order.Err, errStreamEnded)
}

func TestTrackOrder_OpenError(t *testing.T) {
	opener := &fakeOpener{openErr: &types.ChannelError{Op: "dial", Err: errors.New("connection refused")}}
	o := New(testConfig(testutil.NewMockSubmitter(), opener))

	result, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, OutcomeChannelError, result.Orders[0].Outcome)
	assert.Equal(t, "mock-order-1", result.Orders[0].OrderID)
}

func TestSingleOrder_Cancelled(t *testing.T) {
	opener := &fakeOpener{events: []types.StatusEvent{event(types.StatusPending)}}
	o := New(testConfig(testutil.NewMockSubmitter(), opener))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result, err := o.SingleOrder(ctx, testutil.SOLUSDCOrder())
	require.ErrorIs(t, err, context.Canceled)

	assert.False(t, result.Passed)
	assert.Equal(t, OutcomeCancelled, result.Orders[0].Outcome)
	assert.Empty(t, result.Violations)
}

func TestRapidConnect(t *testing.T) {
	t.Run("mock service", func(t *testing.T) {
		o := newMockHarness(t, mockservice.Config{})

		result, err := o.RapidConnect(context.Background(), 0, 0)
		require.NoError(t, err)

		assert.True(t, result.Passed)
		assert.Equal(t, 10, result.Probes.Attempted)
		assert.Equal(t, 10, result.Probes.Succeeded)
	})

	tests := []struct {
		name      string
		failEvery int64
		passed    bool
	}{
		{name: "one in five fails", failEvery: 5, passed: true},
		{name: "half fail", failEvery: 2, passed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(testConfig(testutil.NewMockSubmitter(), &fakeOpener{failEvery: tt.failEvery}))

			result, err := o.RapidConnect(context.Background(), 10, time.Millisecond)
			require.NoError(t, err)

			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, 10, result.Probes.Attempted)
			assert.Len(t, result.Probes.Errors, result.Probes.Failed())
		})
	}
}

func TestReconnectAfterClose(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{})

	result, err := o.ReconnectAfterClose(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Passed, "notes: %v", result.Notes)
	assert.Equal(t, 1, result.Probes.Succeeded)
}

func TestInvalidSlippage(t *testing.T) {
	t.Run("rejected by service", func(t *testing.T) {
		o := newMockHarness(t, mockservice.Config{})

		result, err := o.InvalidSlippage(context.Background())
		require.NoError(t, err)

		assert.True(t, result.Passed, "errors: %v", result.Probes.Errors)
		assert.Equal(t, len(InvalidSlippageValues), result.Probes.Succeeded)
		assert.Len(t, result.Notes, len(InvalidSlippageValues))
	})

	t.Run("accepted by service", func(t *testing.T) {
		o := New(testConfig(testutil.NewMockSubmitter(), &fakeOpener{}))

		result, err := o.InvalidSlippage(context.Background())
		require.NoError(t, err)

		assert.False(t, result.Passed)
		assert.Equal(t, 0, result.Probes.Succeeded)
		assert.Contains(t, result.Probes.Errors[0], "accepted as order mock-order-1")
	})
}

func TestEdgeCaseProbes(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{Script: mockservice.ConfirmScript(step)})

	result, err := o.EdgeCaseProbes(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Passed, "notes: %v", result.Notes)
	assert.Len(t, result.Notes, 5)
	assert.Equal(t, 5, result.Probes.Succeeded)
	assert.Contains(t, result.Notes[0], "empty-token-in")
	assert.Contains(t, result.Notes[2], "accepted as order")
	require.Len(t, result.Orders, 1)
	assert.Equal(t, OutcomeConfirmed, result.Orders[0].Outcome)
}

func TestEdgeCaseProbes_LargeOrderChannelError(t *testing.T) {
	opener := &fakeOpener{
		events:    []types.StatusEvent{event(types.StatusPending)},
		ended:     true,
		streamErr: &types.ChannelError{Op: "read", Err: errors.New("unexpected EOF")},
	}
	o := New(testConfig(testutil.NewMockSubmitter(), opener))

	result, err := o.EdgeCaseProbes(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, OutcomeChannelError, result.Orders[0].Outcome)
}

func TestHighFrequencySubmission(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{Script: mockservice.ConfirmScript(step)})

	result, err := o.HighFrequencySubmission(context.Background(), 0)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Equal(t, 20, result.Probes.Attempted)
	assert.Equal(t, 20, result.Probes.Succeeded)
}

func TestHighFrequencySubmission_Unavailable(t *testing.T) {
	submitter := testutil.NewMockSubmitter()
	submitter.Err = &types.SubmissionError{StatusCode: 503, Message: "service unavailable"}
	o := New(testConfig(submitter, &fakeOpener{}))

	result, err := o.HighFrequencySubmission(context.Background(), 8)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.Equal(t, 8, result.Probes.Failed())
	assert.Len(t, submitter.Requests(), 8)
}

func TestResult_Report(t *testing.T) {
	opener := &fakeOpener{events: []types.StatusEvent{
		event(types.StatusPending),
		confirmedEvent(150),
	}}
	o := New(testConfig(testutil.NewMockSubmitter(), opener))

	result, err := o.SingleOrder(context.Background(), testutil.SOLUSDCOrder())
	require.NoError(t, err)

	report := result.Report()
	assert.Equal(t, string(KindSingleOrder), report.Scenario)
	assert.False(t, report.Passed)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, "mock-order-1", report.Orders[0].OrderID)
	assert.Equal(t, OutcomeConfirmed, report.Orders[0].Outcome)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, types.ViolationIncompleteFlow, report.Violations[0].Kind)
	assert.Equal(t, "mock-order-1", report.Violations[0].OrderID)
	assert.Empty(t, report.Error)
}

func TestProbeTally(t *testing.T) {
	var tally ProbeTally
	tally.record(nil)
	tally.record(fmt.Errorf("dial: refused"))
	tally.record(nil)

	assert.Equal(t, 3, tally.Attempted)
	assert.Equal(t, 2, tally.Succeeded)
	assert.Equal(t, 1, tally.Failed())
	assert.InDelta(t, 2.0/3.0, tally.Ratio(), 1e-9)
	assert.Equal(t, []string{"dial: refused"}, tally.Errors)
}
