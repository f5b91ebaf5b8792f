package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trading journal",
	Long: `Query and display records from the SQLite journal.

Examples:
  tradebot journal orders --db tradebot.db
  tradebot journal fills --limit 50
  tradebot journal equity`,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List recent order transitions",
	Args:  cobra.NoArgs,
	RunE:  runJournalOrders,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "List recent fills",
	Args:  cobra.NoArgs,
	RunE:  runJournalFills,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity",
	Short: "List recent equity snapshots",
	Args:  cobra.NoArgs,
	RunE:  runJournalEquity,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrdersCmd)
	journalCmd.AddCommand(journalFillsCmd)
	journalCmd.AddCommand(journalEquityCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "tradebot.db", "path to SQLite journal DB")
	journalCmd.PersistentFlags().IntVarP(&journalLimit, "limit", "n", 25, "maximum rows to display")
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListOrders(journalLimit)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}

	fmt.Printf("%-28s %-10s %-10s %10s %10s %10s  %-16s %s\n",
		"ORDER", "INSTR", "STRATEGY", "QTY", "FILLED", "AVG PX", "STATE", "REASON")
	for _, r := range recs {
		fmt.Printf("%-28s %-10s %-10s %10.4f %10.4f %10.4f  %-16s %s\n",
			r.ID, r.Instrument, r.Strategy, r.Quantity, r.FilledQty, r.AvgFillPrice, r.State, r.Reason)
	}
	return nil
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListFills(journalLimit)
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}

	fmt.Printf("%-28s %-28s %-10s %10s %10s  %s\n", "FILL", "ORDER", "INSTR", "QTY", "PRICE", "TIME")
	for _, r := range recs {
		fmt.Printf("%-28s %-28s %-10s %10.4f %10.4f  %s\n",
			r.ID, r.OrderID, r.Instrument, r.Quantity, r.Price, r.Time.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListEquity(journalLimit)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	fmt.Printf("%-20s %12s %12s %12s %12s %5s\n", "TIME", "CASH", "EQUITY", "REALIZED", "UNREALIZED", "POS")
	for _, r := range recs {
		fmt.Printf("%-20s %12.2f %12.2f %12.2f %12.2f %5d\n",
			r.Time.Format("2006-01-02 15:04:05"), r.Cash, r.Equity, r.RealizedPL, r.UnrealizedPL, r.OpenPositions)
	}
	return nil
}
