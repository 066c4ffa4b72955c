package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/upquant/upquant/journal"
	"github.com/upquant/upquant/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Query journaled fills and equity",
	Long: `Query a SQLite run journal.

Subcommands:
  today   - List fills recorded today (UTC)
  day     - List fills recorded on a specific UTC day
  summary - Performance summary over the journaled equity curve

Examples:
  upquant report today -d backtest.sqlite
  upquant report day 2024-01-15 -d backtest.sqlite
  upquant report summary -d backtest.sqlite`,
}

var reportTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List fills recorded today",
	Args:  cobra.NoArgs,
	RunE:  runReportToday,
}

var reportDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List fills recorded on a specific UTC day",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportDay,
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Performance summary over the journaled equity curve",
	Args:  cobra.NoArgs,
	RunE:  runReportSummary,
}

var (
	reportDBPath  string
	reportPeriods float64
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportTodayCmd)
	reportCmd.AddCommand(reportDayCmd)
	reportCmd.AddCommand(reportSummaryCmd)

	reportCmd.PersistentFlags().StringVarP(&reportDBPath, "db", "d", "./upquant.sqlite", "path to SQLite journal DB")
	reportSummaryCmd.Flags().Float64Var(&reportPeriods, "periods-per-year", 365*24, "equity snapshot periods per year, for Sharpe annualization")
}

func runReportToday(cmd *cobra.Command, args []string) error {
	return listFills(time.Now().UTC().Format("2006-01-02"))
}

func runReportDay(cmd *cobra.Command, args []string) error {
	return listFills(args[0])
}

func listFills(day string) error {
	start, err := time.Parse("2006-01-02", day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	end := start.Add(24 * time.Hour)

	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	fills, err := j.ListFillsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}
	if len(fills) == 0 {
		fmt.Printf("No fills on %s\n", day)
		return nil
	}

	for _, f := range fills {
		fmt.Printf("%s  %-4s %-10s %14.2f x %.8f  %-12s %s\n",
			f.Time.UTC().Format("15:04:05"), f.Side, f.Symbol, f.Price, f.Quantity, f.Strategy, f.Reason)
	}
	fmt.Printf("%d fills\n", len(fills))
	return nil
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListEquityBetween(time.Time{}, time.Now().UTC().Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	snaps := make([]report.Snapshot, len(recs))
	for i, r := range recs {
		snaps[i] = report.Snapshot{Time: r.Time, Cash: r.Cash, NetWorth: r.NetWorth}
	}

	sum := report.Summarize(snaps, nil, 0, reportPeriods)
	fmt.Println(sum)
	if !sum.NoData {
		fmt.Printf("  Net worth: %.0f -> %.0f KRW over %s\n",
			sum.InitialNetWorth, sum.FinalNetWorth, sum.End.Sub(sum.Start))
	}
	return nil
}
