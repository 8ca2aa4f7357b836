package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/mselser95/execution-harness/internal/execution"
	"github.com/mselser95/execution-harness/internal/scenario"
	"github.com/mselser95/execution-harness/internal/storage"
	"github.com/mselser95/execution-harness/pkg/config"
	"github.com/mselser95/execution-harness/pkg/types"
	"github.com/mselser95/execution-harness/pkg/websocket"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one market order and follow it to a terminal status",
	Long: `Submits a single market order, opens its push channel and prints every
status it goes through, the validation verdict and the completion time.

Example:
  execution-harness submit --token-in SOL --token-out USDC --amount 1.5 --slippage 0.02
  execution-harness submit --amount 3 --json`,
	RunE: runSubmit,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().String("token-in", "SOL", "Token to sell")
	submitCmd.Flags().String("token-out", "USDC", "Token to buy")
	submitCmd.Flags().Float64("amount", 1.0, "Amount of token-in")
	submitCmd.Flags().Float64("slippage", 0.02, "Max slippage as a fraction, e.g. 0.02")
	submitCmd.Flags().Bool("json", false, "Print the result as JSON")
}

func runSubmit(cmd *cobra.Command, args []string) error {
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

	tokenIn, _ := cmd.Flags().GetString("token-in")
	tokenOut, _ := cmd.Flags().GetString("token-out")
	amount, _ := cmd.Flags().GetFloat64("amount")
	slippage, _ := cmd.Flags().GetFloat64("slippage")
	asJSON, _ := cmd.Flags().GetBool("json")

	req := types.OrderRequest{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      amount,
		OrderType:   types.OrderTypeMarket,
		MaxSlippage: slippage,
	}

	client, err := execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL:    cfg.APIURL,
		SubmitPath: cfg.SubmitPath,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create order client: %w", err)
	}

	dialer := websocket.NewDialer(websocket.Config{
		URL:                   cfg.WSURL,
		DialTimeout:           cfg.WSDialTimeout,
		WriteTimeout:          cfg.WSWriteTimeout,
		EventBufferSize:       cfg.WSEventBufferSize,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		ReconnectMaxAttempts:  cfg.WSReconnectMaxAttempts,
		Logger:                logger,
	})

	scenarioCfg := scenario.DefaultConfig()
	scenarioCfg.Submitter = client
	scenarioCfg.Opener = scenario.NewDialerOpener(dialer)
	scenarioCfg.Logger = logger
	scenarioCfg.SubmitTimeout = cfg.SubmitTimeout
	scenarioCfg.OrderTimeout = cfg.OrderTimeout
	orchestrator := scenario.New(scenarioCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := orchestrator.SingleOrder(ctx, req)
	if result == nil {
		return fmt.Errorf("submit order: %w", err)
	}

	if asJSON {
		out, marshalErr := json.MarshalIndent(result.Report(), "", "  ")
		if marshalErr != nil {
			return fmt.Errorf("encode result: %w", marshalErr)
		}
		fmt.Fprintln(os.Stdout, string(out))
	} else {
		_ = storage.NewConsoleStorage(logger).StoreResult(ctx, result)
	}

	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	if !result.Passed {
		return fmt.Errorf("order did not pass: %d violations", len(result.Violations))
	}

	return nil
}
