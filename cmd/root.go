package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "execution-harness",
	Short: "Conformance harness for order execution services",
	Long: `Conformance harness for order execution services.

The harness submits market orders to an execution service over HTTP, follows
each order's status updates on its WebSocket push channel, and checks every
lifecycle against the expected status transitions, timing budgets and terminal
payloads. Scenarios cover single and concurrent orders, connection handling,
input validation and sustained submission rates.

Configuration is read from the environment and from a .env file when present.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
