package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/upquant/upquant/config"
	"github.com/upquant/upquant/engine"
	"github.com/upquant/upquant/journal"
	"github.com/upquant/upquant/market"
	"github.com/upquant/upquant/marketdata"
	"github.com/upquant/upquant/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest from a config file",
	Long: `Backtest replays historical Upbit candles through the configured
strategies and prints a performance summary.

Candles come from the configured data source: the Upbit public API
(with an on-disk Parquet cache) or a local CSV file.

Example:
  upquant backtest -f examples/configs/breakout.yaml`,
	RunE: runBacktest,
}

var backtestConfigPath string

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	backtestCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(backtestConfigPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	strats := make([]strategy.Decision, 0, len(cfg.Strategies))
	for _, spec := range cfg.Strategies {
		s, err := spec.Build()
		if err != nil {
			return fmt.Errorf("build strategy: %w", err)
		}
		strats = append(strats, s)
	}

	ctx := context.Background()
	series, err := loadSeries(ctx, cfg, strats, log)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}

	clock, err := engine.NewClock(series...)
	if err != nil {
		return fmt.Errorf("build clock: %w", err)
	}

	eng, err := engine.New(cfg.Engine(), clock, strats, j, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	fmt.Printf("Running backtest: %s\n", backtestConfigPath)
	fmt.Printf("  Strategies: %d, ticks: %d\n\n", len(strats), clock.Len())

	res, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("Backtest complete: %s\n", res.Summary)
	fmt.Printf("  Net worth: %.0f -> %.0f KRW (fees %.0f)\n",
		res.Summary.InitialNetWorth, res.Summary.FinalNetWorth, res.Summary.FeesPaid)
	if res.Halted {
		fmt.Println("  Circuit breaker tripped: entries were halted")
	}
	for name, reason := range res.Disabled {
		fmt.Printf("  Strategy %s disabled: %s\n", name, reason)
	}
	return nil
}

// loadSeries fetches one candle series per distinct strategy symbol.
func loadSeries(ctx context.Context, cfg *config.Config, strats []strategy.Decision, log *slog.Logger) ([]*market.BarSeries, error) {
	tf, err := cfg.Timeframe()
	if err != nil {
		return nil, err
	}
	from, to, err := cfg.Window()
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(strats))
	seen := map[string]bool{}
	for _, s := range strats {
		if !seen[s.Symbol()] {
			seen[s.Symbol()] = true
			symbols = append(symbols, s.Symbol())
		}
	}

	if cfg.Data.Source == "csv" {
		if len(symbols) != 1 {
			return nil, fmt.Errorf("csv source supports exactly one symbol, got %d", len(symbols))
		}
		s, err := marketdata.LoadCSV(cfg.Data.CSVPath, symbols[0], tf)
		if err != nil {
			return nil, err
		}
		return []*market.BarSeries{s}, nil
	}

	var provider marketdata.Provider = marketdata.NewUpbit()
	if cfg.Data.CacheDir != "" {
		provider = marketdata.NewCachedProvider(marketdata.NewParquetCache(cfg.Data.CacheDir), provider, log)
	}

	out := make([]*market.BarSeries, 0, len(symbols))
	for _, sym := range symbols {
		s, err := provider.Candles(ctx, sym, tf, from, to)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// openJournal builds the journal backend named in the config.
func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.FillsFile, cfg.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	default:
		return journal.Nop{}, nil
	}
}
