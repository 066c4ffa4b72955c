package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upquant/upquant/config"
)

var rootCmd = &cobra.Command{
	Use:   "upquant",
	Short: "A crypto trading research platform for the Upbit exchange",
	Long: `Upquant is a backtesting and live trading platform for Upbit spot markets.

It provides tools for:
  - Deterministic event-driven backtesting over historical candles
  - Downloading and caching Upbit candle data as Parquet
  - Breakout, trend-following, mean-reversion, and grid strategies
  - Kelly-based position sizing with a drawdown circuit breaker
  - Trade and equity journaling to CSV or SQLite
  - Live trading with the same strategy code as backtests`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the log section of a config.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}
