package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "An automated trading bot with strategy, risk, and execution layers",
	Long: `Tradebot runs a continuous decision loop over live or replayed market
data: strategies emit trade intents, a risk manager sizes or rejects
them, and an execution coordinator works the surviving orders against
the brokerage.

It provides:
  - Live trading against Alpaca (paper or live endpoints)
  - A built-in deterministic paper gateway
  - CSV replay of recorded market data
  - Portfolio risk budgeting with a one-way circuit breaker
  - A SQLite/CSV journal of orders, fills, and equity`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
