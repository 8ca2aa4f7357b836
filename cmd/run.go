package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/mselser95/execution-harness/internal/app"
	"github.com/mselser95/execution-harness/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conformance suite",
	Long: `Runs the conformance suite against the execution service at API_URL / WS_URL.

Without --suite the built-in suite runs every scenario once:
  order-lifecycle, concurrent-orders, acknowledgment-timeout, rapid-connections,
  reconnection, invalid-slippage, edge-cases, high-frequency-submission,
  data-consistency

Use --scenario (repeatable) to run only the scenarios with that name or kind.
The command exits non-zero when any scenario fails.

Example:
  execution-harness run --scenario order-lifecycle --scenario rapid_connect
  execution-harness run --suite suites/smoke.yaml --serve`,
	RunE: runSuite,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("suite", "", "Path to a YAML suite file (overrides SUITE_FILE)")
	runCmd.Flags().StringSlice("scenario", nil, "Run only scenarios with this name or kind (repeatable)")
	runCmd.Flags().Bool("serve", false, "Keep serving /api/results after the suite until interrupted (needs METRICS_ENABLED)")
}

func runSuite(cmd *cobra.Command, args []string) error {
	// Optional .env, real environment wins
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	suiteFile, _ := cmd.Flags().GetString("suite")
	scenarios, _ := cmd.Flags().GetStringSlice("scenario")
	serve, _ := cmd.Flags().GetBool("serve")

	opts := &app.Options{
		SuiteFile:   suiteFile,
		Scenarios:   scenarios,
		KeepServing: serve,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
