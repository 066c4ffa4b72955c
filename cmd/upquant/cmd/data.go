package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/upquant/upquant/marketdata"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Download and inspect cached candle data",
	Long: `Manage the on-disk Parquet candle cache.

Subcommands:
  fetch   - Download candles from Upbit and store them in the cache
  symbols - List symbols present in the cache for a timeframe

Examples:
  upquant data fetch -m KRW-BTC -t 1h --from 2024-01-01T00:00:00Z --to 2024-03-01T00:00:00Z
  upquant data symbols -t 1h`,
}

var dataFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download candles from Upbit into the cache",
	RunE:  runDataFetch,
}

var dataSymbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List cached symbols for a timeframe",
	RunE:  runDataSymbols,
}

var (
	dataDir       string
	dataSymbol    string
	dataTimeframe string
	dataFrom      string
	dataTo        string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataFetchCmd)
	dataCmd.AddCommand(dataSymbolsCmd)

	dataCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "data", "cache directory")
	dataCmd.PersistentFlags().StringVarP(&dataTimeframe, "timeframe", "t", "1h", "candle timeframe (1m, 15m, 1h, 4h, 24h)")

	dataFetchCmd.Flags().StringVarP(&dataSymbol, "market", "m", "", "Upbit market code, e.g. KRW-BTC (required)")
	dataFetchCmd.Flags().StringVar(&dataFrom, "from", "", "window start, RFC 3339 (required)")
	dataFetchCmd.Flags().StringVar(&dataTo, "to", "", "window end, RFC 3339 (default: now)")
	dataFetchCmd.MarkFlagRequired("market")
	dataFetchCmd.MarkFlagRequired("from")
}

func runDataFetch(cmd *cobra.Command, args []string) error {
	tf, err := time.ParseDuration(dataTimeframe)
	if err != nil {
		return fmt.Errorf("bad timeframe %q: %w", dataTimeframe, err)
	}

	from, err := time.Parse(time.RFC3339, dataFrom)
	if err != nil {
		return fmt.Errorf("bad from %q: %w", dataFrom, err)
	}
	to := time.Now().UTC()
	if dataTo != "" {
		to, err = time.Parse(time.RFC3339, dataTo)
		if err != nil {
			return fmt.Errorf("bad to %q: %w", dataTo, err)
		}
	}

	fmt.Printf("Fetching %s %s candles from %s to %s\n", dataSymbol, dataTimeframe,
		from.Format(time.RFC3339), to.Format(time.RFC3339))

	series, err := marketdata.NewUpbit().Candles(context.Background(), dataSymbol, tf, from, to)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	cache := marketdata.NewParquetCache(dataDir)
	if err := cache.WriteBars(series); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}

	fmt.Printf("Cached %d candles under %s\n", series.Len(), dataDir)
	return nil
}

func runDataSymbols(cmd *cobra.Command, args []string) error {
	tf, err := time.ParseDuration(dataTimeframe)
	if err != nil {
		return fmt.Errorf("bad timeframe %q: %w", dataTimeframe, err)
	}

	syms, err := marketdata.NewParquetCache(dataDir).Symbols(tf)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	if len(syms) == 0 {
		fmt.Printf("No cached symbols for timeframe %s\n", dataTimeframe)
		return nil
	}
	for _, s := range syms {
		fmt.Println(s)
	}
	return nil
}
