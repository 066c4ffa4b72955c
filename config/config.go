// Package config loads and validates run configuration from YAML or
// JSON files. Bad configuration fails at load time, before any data is
// fetched or any order is placed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/upquant/upquant/engine"
	"github.com/upquant/upquant/strategy"
)

// Config is the complete configuration of a backtest or live run.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Strategies []StrategySpec   `json:"strategies" yaml:"strategies"`
	Data       DataConfig       `json:"data" yaml:"data"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// AccountConfig sets up the simulated ledger.
type AccountConfig struct {
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
	FeeRate     float64 `json:"fee_rate" yaml:"fee_rate"`
}

// SimulationConfig controls the replay engine.
type SimulationConfig struct {
	Seed                   int64   `json:"seed" yaml:"seed"`
	DecisionHour           *int    `json:"decision_hour,omitempty" yaml:"decision_hour,omitempty"`
	MaxConcurrentPositions int     `json:"max_concurrent_positions" yaml:"max_concurrent_positions"`
	MaxDrawdown            float64 `json:"max_drawdown" yaml:"max_drawdown"`
	MaxStrategyFaults      int     `json:"max_strategy_faults" yaml:"max_strategy_faults"`
	Timeframe              string  `json:"timeframe" yaml:"timeframe"` // "1h", "24h"
	From                   string  `json:"from" yaml:"from"`           // RFC 3339
	To                     string  `json:"to" yaml:"to"`
}

// StrategySpec names a strategy variant, the symbol it trades, and its
// parameters.
type StrategySpec struct {
	Name   string `json:"name" yaml:"name"`
	Symbol string `json:"symbol" yaml:"symbol"`

	BreakoutK     float64 `json:"breakout_k,omitempty" yaml:"breakout_k,omitempty"`
	FastPeriod    int     `json:"fast_period,omitempty" yaml:"fast_period,omitempty"`
	SlowPeriod    int     `json:"slow_period,omitempty" yaml:"slow_period,omitempty"`
	SignalPeriod  int     `json:"signal_period,omitempty" yaml:"signal_period,omitempty"`
	ATRPeriod     int     `json:"atr_period,omitempty" yaml:"atr_period,omitempty"`
	ATRMultiplier float64 `json:"atr_multiplier,omitempty" yaml:"atr_multiplier,omitempty"`
	BBPeriod      int     `json:"bb_period,omitempty" yaml:"bb_period,omitempty"`
	BBStdDev      float64 `json:"bb_std_dev,omitempty" yaml:"bb_std_dev,omitempty"`
	RSIPeriod     int     `json:"rsi_period,omitempty" yaml:"rsi_period,omitempty"`
	GridLower     float64 `json:"grid_lower,omitempty" yaml:"grid_lower,omitempty"`
	GridUpper     float64 `json:"grid_upper,omitempty" yaml:"grid_upper,omitempty"`
	GridCount     int     `json:"grid_count,omitempty" yaml:"grid_count,omitempty"`
	GridNotional  float64 `json:"grid_notional,omitempty" yaml:"grid_notional,omitempty"`
}

// DataConfig selects where candles come from.
type DataConfig struct {
	Source   string `json:"source" yaml:"source"` // "upbit", "csv"
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	CSVPath  string `json:"csv_path,omitempty" yaml:"csv_path,omitempty"`
}

// JournalConfig selects run persistence.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite", "none"
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text, json
}

// Default returns a runnable baseline configuration.
func Default() *Config {
	nine := 9
	return &Config{
		Account: AccountConfig{InitialCash: 1_000_000, FeeRate: 0.0005},
		Simulation: SimulationConfig{
			DecisionHour:           &nine,
			MaxConcurrentPositions: 4,
			MaxDrawdown:            0.15,
			MaxStrategyFaults:      3,
			Timeframe:              "1h",
		},
		Strategies: []StrategySpec{{Name: "breakout", Symbol: "KRW-BTC", BreakoutK: 0.5}},
		Data:       DataConfig{Source: "upbit", CacheDir: "data"},
		Journal:    JournalConfig{Type: "none"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates a config file. YAML is tried first, then
// JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", yerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration, YAML for .yaml/.yml and JSON
// otherwise.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that could not run.
func (c *Config) Validate() error {
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if c.Account.FeeRate < 0 || c.Account.FeeRate >= 1 {
		return fmt.Errorf("account.fee_rate must be in [0, 1)")
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		if s.Symbol == "" {
			return fmt.Errorf("strategies[%d].symbol is required", i)
		}
		// Build now so bad parameters surface at load time.
		if _, err := s.Build(); err != nil {
			return fmt.Errorf("strategies[%d]: %w", i, err)
		}
	}

	if c.Simulation.DecisionHour != nil {
		if h := *c.Simulation.DecisionHour; h < -1 || h > 23 {
			return fmt.Errorf("simulation.decision_hour must be -1..23")
		}
	}
	if c.Simulation.MaxDrawdown < 0 || c.Simulation.MaxDrawdown >= 1 {
		return fmt.Errorf("simulation.max_drawdown must be in [0, 1)")
	}
	if _, err := c.Timeframe(); err != nil {
		return err
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}

	switch c.Data.Source {
	case "", "upbit":
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("data.csv_path is required for csv source")
		}
	default:
		return fmt.Errorf("data.source %q is not supported", c.Data.Source)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal.fills_file and journal.equity_file are required for csv journal")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path is required for sqlite journal")
		}
	default:
		return fmt.Errorf("journal.type %q is not supported", c.Journal.Type)
	}

	return nil
}

// Timeframe parses the bar timeframe, defaulting to one hour.
func (c *Config) Timeframe() (time.Duration, error) {
	if c.Simulation.Timeframe == "" {
		return time.Hour, nil
	}
	d, err := time.ParseDuration(c.Simulation.Timeframe)
	if err != nil {
		return 0, fmt.Errorf("simulation.timeframe: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("simulation.timeframe must be positive")
	}
	return d, nil
}

// Window parses the replay range. Zero times mean unbounded and are
// resolved by the caller.
func (c *Config) Window() (from, to time.Time, err error) {
	if c.Simulation.From != "" {
		from, err = time.Parse(time.RFC3339, c.Simulation.From)
		if err != nil {
			return from, to, fmt.Errorf("simulation.from: %w", err)
		}
	}
	if c.Simulation.To != "" {
		to, err = time.Parse(time.RFC3339, c.Simulation.To)
		if err != nil {
			return from, to, fmt.Errorf("simulation.to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, fmt.Errorf("simulation.from must precede simulation.to")
	}
	return from, to, nil
}

// Engine maps the configuration to an engine.Config.
func (c *Config) Engine() engine.Config {
	hour := 9
	if c.Simulation.DecisionHour != nil {
		hour = *c.Simulation.DecisionHour
	}

	periods := 365.0 * 24
	if tf, err := c.Timeframe(); err == nil && tf == 24*time.Hour {
		periods = 365
	}

	return engine.Config{
		InitialCash:            c.Account.InitialCash,
		FeeRate:                c.Account.FeeRate,
		Seed:                   c.Simulation.Seed,
		DecisionHour:           hour,
		MaxConcurrentPositions: c.Simulation.MaxConcurrentPositions,
		MaxDrawdown:            c.Simulation.MaxDrawdown,
		MaxStrategyFaults:      c.Simulation.MaxStrategyFaults,
		PeriodsPerYear:         periods,
	}
}

// Build constructs the strategy this spec describes.
func (s StrategySpec) Build() (strategy.Decision, error) {
	return strategy.New(s.Name, s.Symbol, strategy.Config{
		BreakoutK:     s.BreakoutK,
		FastPeriod:    s.FastPeriod,
		SlowPeriod:    s.SlowPeriod,
		SignalPeriod:  s.SignalPeriod,
		ATRPeriod:     s.ATRPeriod,
		ATRMultiplier: s.ATRMultiplier,
		BBPeriod:      s.BBPeriod,
		BBStdDev:      s.BBStdDev,
		RSIPeriod:     s.RSIPeriod,
		GridLower:     s.GridLower,
		GridUpper:     s.GridUpper,
		GridCount:     s.GridCount,
		GridNotional:  s.GridNotional,
	})
}
