package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mselser95/execution-harness/internal/mockservice"
	"github.com/mselser95/execution-harness/internal/scenario"
	"github.com/mselser95/execution-harness/internal/testutil"
	"github.com/mselser95/execution-harness/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAppConfig(svc *testutil.MockExecutionService) *config.Config {
	return &config.Config{
		LogLevel:                   "debug",
		HTTPPort:                   "0",
		APIURL:                     svc.APIURL,
		WSURL:                      svc.WSURL,
		SubmitPath:                 mockservice.OrdersPath,
		SubmitTimeout:              2 * time.Second,
		ProbeSubmitTimeout:         2 * time.Second,
		HighFrequencySubmitTimeout: 2 * time.Second,
		OrderTimeout:               2 * time.Second,
		AckTimeoutWindow:           200 * time.Millisecond,
		LargeOrderWindow:           2 * time.Second,
		ResolvedCacheTTL:           time.Minute,
		ConcurrentOrders:           3,
		MinSuccessRatio:            0.8,
		RapidConnections:           3,
		RapidConnectHold:           5 * time.Millisecond,
		ReconnectWindow:            2 * time.Second,
		HighFrequencyOrders:        5,
		HighFrequencyMinRatio:      0.75,
		SuitePause:                 time.Millisecond,
		WSDialTimeout:              2 * time.Second,
		WSWriteTimeout:             2 * time.Second,
		WSEventBufferSize:          16,
		WSReconnectInitialDelay:    10 * time.Millisecond,
		WSReconnectMaxDelay:        100 * time.Millisecond,
		WSReconnectBackoffMult:     2.0,
		WSReconnectMaxAttempts:     3,
		StorageMode:                "console",
	}
}

func TestE2E_RunSuite(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	svc := testutil.NewMockExecutionService(mockservice.Config{
		Script: mockservice.ConfirmScript(5 * time.Millisecond),
	})
	defer svc.Close()

	application, err := New(testAppConfig(svc), logger, &Options{
		Scenarios: []string{"order-lifecycle", "rapid_connect"},
	})
	require.NoError(t, err)

	err = application.Run()
	require.NoError(t, err)

	run := application.LastRun()
	require.NotNil(t, run)
	assert.Equal(t, 2, run.Totals.Total)
	assert.Equal(t, 2, run.Totals.Passed)

	latest := application.results.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, "order-lifecycle", latest[0].Scenario)
	assert.Equal(t, "rapid-connections", latest[1].Scenario)

	progress := application.healthChecker.Progress()
	assert.Equal(t, int64(2), progress.Passed)
	assert.Equal(t, int64(0), progress.Failed)
	assert.Equal(t, "rapid-connections", progress.Scenario)

	assert.Equal(t, 1, svc.Service.Orders())
}

func TestE2E_RunSuite_ReportsFailures(t *testing.T) {
	svc := testutil.NewMockExecutionService(mockservice.Config{
		Script: mockservice.FailScript(5*time.Millisecond, "Execution failed after 3 retry attempts"),
	})
	defer svc.Close()

	application, err := New(testAppConfig(svc), zap.NewNop(), &Options{
		Scenarios: []string{"order-lifecycle"},
	})
	require.NoError(t, err)

	err = application.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSuiteFailed))
	assert.Contains(t, err.Error(), "1 of 1 scenarios failed")

	assert.Equal(t, int64(1), application.healthChecker.Progress().Failed)
}

func TestNew_SuiteFile(t *testing.T) {
	svc := testutil.NewMockExecutionService(mockservice.Config{})
	defer svc.Close()

	path := filepath.Join(t.TempDir(), "suite.yaml")
	suiteYAML := "name: smoke\nscenarios:\n  - name: connections\n    kind: rapid_connect\n    count: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(suiteYAML), 0o600))

	application, err := New(testAppConfig(svc), zap.NewNop(), &Options{SuiteFile: path})
	require.NoError(t, err)
	defer application.Shutdown()

	assert.Equal(t, "smoke", application.suite.Name)
	require.Len(t, application.suite.Scenarios, 1)
	assert.Nil(t, application.httpServer, "http server only runs with metrics enabled")
}

func TestNew_Errors(t *testing.T) {
	svc := testutil.NewMockExecutionService(mockservice.Config{})
	defer svc.Close()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		opts    *Options
		wantErr string
	}{
		{
			name:    "missing suite file",
			opts:    &Options{SuiteFile: filepath.Join(t.TempDir(), "missing.yaml")},
			wantErr: "setup suite",
		},
		{
			name:    "unknown scenario filter",
			opts:    &Options{Scenarios: []string{"load-test"}},
			wantErr: "no scenario in suite",
		},
		{
			name:    "bad api url",
			mutate:  func(cfg *config.Config) { cfg.APIURL = "ftp://localhost" },
			wantErr: "setup order client",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAppConfig(svc)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			_, err := New(cfg, zap.NewNop(), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterSuite(t *testing.T) {
	suite := scenario.DefaultSuite()

	filtered, err := filterSuite(suite, []string{"edge_cases", "order-lifecycle"})
	require.NoError(t, err)
	require.Len(t, filtered.Scenarios, 2)

	// Suite order wins over filter order
	assert.Equal(t, "order-lifecycle", filtered.Scenarios[0].Name)
	assert.Equal(t, scenario.KindEdgeCases, filtered.Scenarios[1].Kind)
	assert.Equal(t, suite.Name, filtered.Name)
}

func TestShutdown_Idempotent(t *testing.T) {
	svc := testutil.NewMockExecutionService(mockservice.Config{})
	defer svc.Close()

	application, err := New(testAppConfig(svc), zap.NewNop(), nil)
	require.NoError(t, err)

	require.NoError(t, application.Shutdown())
	require.NoError(t, application.Shutdown())
	assert.Nil(t, application.LastRun())
}
