package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
account:
  initial_cash: 1000000
  fee_rate: 0.0005
simulation:
  seed: 42
  decision_hour: 9
  max_concurrent_positions: 4
  max_drawdown: 0.15
  timeframe: 1h
  from: 2024-01-01T00:00:00Z
  to: 2024-03-01T00:00:00Z
strategies:
  - name: breakout
    symbol: KRW-BTC
    breakout_k: 0.5
  - name: trend
    symbol: KRW-ETH
journal:
  type: sqlite
  db_path: run.db
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 1_000_000.0, cfg.Account.InitialCash)
	assert.Equal(t, 0.0005, cfg.Account.FeeRate)
	require.NotNil(t, cfg.Simulation.DecisionHour)
	assert.Equal(t, 9, *cfg.Simulation.DecisionHour)
	assert.Len(t, cfg.Strategies, 2)

	tf, err := cfg.Timeframe()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, tf)

	from, to, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.True(t, from.Before(to))
}

func TestLoadJSONFallback(t *testing.T) {
	body := `{
  "account": {"initial_cash": 500000, "fee_rate": 0.0005},
  "strategies": [{"name": "breakout", "symbol": "KRW-BTC"}]
}`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, 500_000.0, cfg.Account.InitialCash)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no cash", func(c *Config) { c.Account.InitialCash = 0 }},
		{"fee out of range", func(c *Config) { c.Account.FeeRate = 1.5 }},
		{"no strategies", func(c *Config) { c.Strategies = nil }},
		{"unknown strategy", func(c *Config) { c.Strategies[0].Name = "martingale" }},
		{"missing symbol", func(c *Config) { c.Strategies[0].Symbol = "" }},
		{"bad decision hour", func(c *Config) { h := 24; c.Simulation.DecisionHour = &h }},
		{"bad drawdown", func(c *Config) { c.Simulation.MaxDrawdown = 1.5 }},
		{"bad timeframe", func(c *Config) { c.Simulation.Timeframe = "yearly" }},
		{"from after to", func(c *Config) {
			c.Simulation.From = "2024-03-01T00:00:00Z"
			c.Simulation.To = "2024-01-01T00:00:00Z"
		}},
		{"csv source without path", func(c *Config) { c.Data.Source = "csv" }},
		{"unknown journal", func(c *Config) { c.Journal.Type = "kafka" }},
		{"sqlite journal without path", func(c *Config) { c.Journal.Type = "sqlite" }},
		{"grid without bounds", func(c *Config) {
			c.Strategies[0] = StrategySpec{Name: "grid", Symbol: "KRW-BTC"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	orig := Default()
	require.NoError(t, orig.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig.Account, loaded.Account)
	assert.Equal(t, orig.Strategies, loaded.Strategies)
}

func TestEngineMapping(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	ec := cfg.Engine()
	assert.Equal(t, int64(42), ec.Seed)
	assert.Equal(t, 9, ec.DecisionHour)
	assert.Equal(t, 4, ec.MaxConcurrentPositions)
	assert.Equal(t, 365.0*24, ec.PeriodsPerYear)

	cfg.Simulation.Timeframe = "24h"
	assert.Equal(t, 365.0, cfg.Engine().PeriodsPerYear)
}

func TestBuildStrategies(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	for _, spec := range cfg.Strategies {
		s, err := spec.Build()
		require.NoError(t, err)
		assert.Equal(t, spec.Symbol, s.Symbol())
	}
}
