package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/upquant/upquant/config"
	"github.com/upquant/upquant/exchange"
	"github.com/upquant/upquant/internal/id"
	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/live"
	"github.com/upquant/upquant/marketdata"
	"github.com/upquant/upquant/strategy"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run strategies against the live Upbit market",
	Long: `Live runs the configured strategies in a scan-and-decide loop
against current Upbit candles.

With --dry-run orders fill a simulated ledger at the last close; without
it, real market orders are sent using the UPBIT_ACCESS_KEY and
UPBIT_SECRET_KEY credentials from the environment or a .env file.

Example:
  upquant live -f examples/configs/breakout.yaml --dry-run`,
	RunE: runLive,
}

var (
	liveConfigPath string
	liveDryRun     bool
	liveLiquidate  bool
	liveWindow     int
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVarP(&liveConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	liveCmd.Flags().BoolVar(&liveDryRun, "dry-run", false, "simulate fills instead of sending real orders")
	liveCmd.Flags().BoolVar(&liveLiquidate, "liquidate-on-exit", false, "sell all open positions on shutdown")
	liveCmd.Flags().IntVar(&liveWindow, "window", 200, "candles fetched per scan (strategy warmup history)")
	liveCmd.MarkFlagRequired("config")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(liveConfigPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	tf, err := cfg.Timeframe()
	if err != nil {
		return err
	}

	strats := make([]strategy.Decision, 0, len(cfg.Strategies))
	for _, spec := range cfg.Strategies {
		s, err := spec.Build()
		if err != nil {
			return fmt.Errorf("build strategy: %w", err)
		}
		strats = append(strats, s)
	}

	book, err := ledger.New(cfg.Account.InitialCash, cfg.Account.FeeRate, id.NewGenerator(cfg.Simulation.Seed))
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	var exec live.Execution = live.PaperExecution{Book: book}
	if !liveDryRun {
		creds, err := exchange.LoadCredentials()
		if err != nil {
			return fmt.Errorf("credentials: %w", err)
		}
		exec = live.ExchangeExecution{Client: exchange.NewClient(creds), Book: book}
		fmt.Println("Live mode: real orders will be sent to Upbit")
	} else {
		fmt.Println("Dry run: fills are simulated")
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	ecfg := cfg.Engine()
	trader, err := live.NewTrader(
		live.Options{
			Interval:               tf,
			DecisionHour:           ecfg.DecisionHour,
			MaxConcurrentPositions: ecfg.MaxConcurrentPositions,
			MaxDrawdown:            ecfg.MaxDrawdown,
			LiquidateOnExit:        liveLiquidate,
			Notifier:               exchange.LogNotifier{Log: log},
		},
		&live.Scanner{Provider: marketdata.NewUpbit(), Timeframe: tf, Window: liveWindow},
		exec,
		book,
		strats,
		j,
		log,
	)
	if err != nil {
		return fmt.Errorf("build trader: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return trader.Run(ctx)
}
