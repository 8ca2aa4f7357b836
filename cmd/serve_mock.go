package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/execution-harness/internal/mockservice"
	"github.com/mselser95/execution-harness/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Serve a mock execution service",
	Long: `Serves an in-process mock of the execution service: the submission endpoint
and the WebSocket push channel on /api/orders/execute, streaming DEX-like status
flows (pending, routing, building, submitted, then confirmed or failed).

Point API_URL and WS_URL at it to exercise the harness without a real service.

Example:
  execution-harness serve-mock --addr :3000 --pace 0.1
  execution-harness serve-mock --drop-after 2`,
	RunE: runServeMock,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveMockCmd)
	defaults := mockservice.DefaultDexOptions()
	serveMockCmd.Flags().String("addr", ":3000", "Listen address")
	serveMockCmd.Flags().Float64("pace", defaults.Pace, "Scale every status delay (1.0 = router timings)")
	serveMockCmd.Flags().Float64("success-rate", defaults.ExecutionSuccessRate, "Chance a single execution attempt lands")
	serveMockCmd.Flags().Int("attempts", defaults.ExecutionAttempts, "Execution attempts before an order fails")
	serveMockCmd.Flags().Int("drop-after", 0, "Close push connections after this many events (0 never drops)")
	serveMockCmd.Flags().Bool("reject", false, "Answer every submission with 503")
}

func runServeMock(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	addr, _ := cmd.Flags().GetString("addr")
	pace, _ := cmd.Flags().GetFloat64("pace")
	successRate, _ := cmd.Flags().GetFloat64("success-rate")
	attempts, _ := cmd.Flags().GetInt("attempts")
	dropAfter, _ := cmd.Flags().GetInt("drop-after")
	reject, _ := cmd.Flags().GetBool("reject")

	opts := mockservice.DefaultDexOptions()
	opts.Pace = pace
	opts.ExecutionSuccessRate = successRate
	opts.ExecutionAttempts = attempts

	svc := mockservice.New(mockservice.Config{
		Script:               mockservice.DexScript(opts),
		DropConnectionsAfter: dropAfter,
		RejectSubmissions:    reject,
		Logger:               logger,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.ListenAndServe(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case err = <-errChan:
		if err != nil {
			return fmt.Errorf("serve mock: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = svc.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown mock: %w", err)
	}

	logger.Info("mock-service-stopped", zap.Int("orders", svc.Orders()))
	return nil
}
