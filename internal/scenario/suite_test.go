package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mselser95/execution-harness/internal/mockservice"
	"github.com/mselser95/execution-harness/internal/testutil"
	"github.com/mselser95/execution-harness/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteYAML = `
name: smoke
pause: 10ms
scenarios:
  - name: lifecycle
    kind: single_order
    order:
      token_in: SOL
      token_out: USDC
      amount: 2.5
      order_type: market
      max_slippage: 0.03
  - name: burst
    kind: concurrent_orders
    count: 3
  - name: short-ack
    kind: ack_timeout
    window: 150ms
  - name: connections
    kind: rapid_connect
    count: 4
    hold: 5ms
`

func TestParseSuite(t *testing.T) {
	suite, err := ParseSuite([]byte(suiteYAML))
	require.NoError(t, err)

	assert.Equal(t, "smoke", suite.Name)
	assert.Equal(t, 10*time.Millisecond, suite.Pause)
	require.Len(t, suite.Scenarios, 4)

	lifecycle := suite.Scenarios[0]
	assert.Equal(t, KindSingleOrder, lifecycle.Kind)
	require.NotNil(t, lifecycle.Order)
	assert.Equal(t, 2.5, lifecycle.Order.Amount)
	assert.Equal(t, types.OrderTypeMarket, lifecycle.Order.OrderType)

	assert.Equal(t, 3, suite.Scenarios[1].Count)
	assert.Equal(t, 150*time.Millisecond, suite.Scenarios[2].Window)
	assert.Equal(t, 5*time.Millisecond, suite.Scenarios[3].Hold)
}

func TestParseSuite_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown kind",
			yaml:    "name: bad\nscenarios:\n  - name: x\n    kind: load_test\n",
			wantErr: `unknown kind "load_test"`,
		},
		{
			name:    "no scenarios",
			yaml:    "name: empty\n",
			wantErr: "has no scenarios",
		},
		{
			name:    "negative count",
			yaml:    "name: bad\nscenarios:\n  - name: x\n    kind: high_frequency\n    count: -1\n",
			wantErr: "count cannot be negative",
		},
		{
			name:    "malformed yaml",
			yaml:    "name: [unclosed",
			wantErr: "decode suite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suiteYAML), 0o600))

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Len(t, suite.Scenarios, 4)

	_, err = LoadSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read suite file")
}

func TestDefaultSuite(t *testing.T) {
	suite := DefaultSuite()
	require.NoError(t, suite.Validate())
	assert.Len(t, suite.Scenarios, 9)

	seen := make(map[Kind]bool)
	for _, spec := range suite.Scenarios {
		seen[spec.Kind] = true
	}
	assert.Len(t, seen, 9, "every scenario kind runs once")
}

func TestRunSuite(t *testing.T) {
	o := newMockHarness(t, mockservice.Config{Script: mockservice.ConfirmScript(step)})

	suite, err := ParseSuite([]byte(suiteYAML))
	require.NoError(t, err)

	var sunk []string
	run, err := o.RunSuite(context.Background(), suite, func(result *Result) {
		sunk = append(sunk, result.Scenario)
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "smoke", run.Suite)
	assert.Equal(t, []string{"lifecycle", "burst", "short-ack", "connections"}, sunk)
	require.Len(t, run.Results, 4)

	assert.Equal(t, 2.5, run.Results[0].Orders[0].Request.Amount)
	assert.Len(t, run.Results[1].Orders, 3)
	assert.Equal(t, 4, run.Results[3].Probes.Attempted)

	assert.Equal(t, 4, run.Totals.Total)
	assert.Equal(t, 4, run.Totals.Passed)
	assert.InDelta(t, 100.0, run.Totals.SuccessPercent, 1e-9)
}

func TestRunSuite_StopsOnFatalError(t *testing.T) {
	submitter := testutil.NewMockSubmitter()
	submitter.FixedOrderID = "order-dup"
	o := New(testConfig(submitter, &fakeOpener{events: []types.StatusEvent{event(types.StatusPending)}}))

	suite := &Suite{
		Name: "fatal",
		Scenarios: []ScenarioSpec{
			{Name: "burst", Kind: KindConcurrent, Count: 2},
			{Name: "never-runs", Kind: KindRapidConnect},
		},
	}

	var sunk int
	run, err := o.RunSuite(context.Background(), suite, func(*Result) { sunk++ })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario burst")

	assert.Equal(t, 1, sunk)
	assert.Equal(t, 1, run.Totals.Total)
	assert.Equal(t, 1, run.Totals.Failed)
}

func TestRunSuite_Cancelled(t *testing.T) {
	o := New(testConfig(testutil.NewMockSubmitter(), &fakeOpener{}))

	suite := &Suite{
		Name:  "cancelled",
		Pause: time.Hour,
		Scenarios: []ScenarioSpec{
			{Name: "connections", Kind: KindRapidConnect, Count: 2},
			{Name: "never-runs", Kind: KindRapidConnect, Count: 2},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	run, err := o.RunSuite(ctx, suite, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, run.Results, 1)
}
