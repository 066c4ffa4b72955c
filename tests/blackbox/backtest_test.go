//go:build blackbox

package blackbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeCandlesCSV builds an hourly series with a clean breakout: quiet
// first day, decisive rally on the second.
func writeCandlesCSV(t *testing.T, dir string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,open,high,low,close,volume\n")
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 72; i++ {
		price := 100.0
		if i >= 24 {
			price = 100 + 2*float64(i-24)
		}
		ts := start.Add(time.Duration(i) * time.Hour)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,10\n",
			ts.Format(time.RFC3339), price, price+1, price-1, price)
	}

	path := filepath.Join(dir, "candles.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeConfig(t *testing.T, dir, csvPath, fills, equity string) string {
	t.Helper()

	cfg := fmt.Sprintf(`account:
  initial_cash: 1000000
  fee_rate: 0.0005
simulation:
  seed: 42
  decision_hour: -1
  max_concurrent_positions: 1
  timeframe: 1h
strategies:
  - name: breakout
    symbol: KRW-BTC
    breakout_k: 0.5
data:
  source: csv
  csv_path: %s
journal:
  type: csv
  fills_file: %s
  equity_file: %s
`, csvPath, fills, equity)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBacktestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCandlesCSV(t, dir)
	fills := filepath.Join(dir, "fills.csv")
	equity := filepath.Join(dir, "equity.csv")
	cfgPath := writeConfig(t, dir, csvPath, fills, equity)

	out := run(t, "backtest", "-f", cfgPath)
	if !strings.Contains(out, "Backtest complete") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	fillData, err := os.ReadFile(fills)
	if err != nil {
		t.Fatal(err)
	}
	if len(strings.Split(strings.TrimSpace(string(fillData)), "\n")) < 2 {
		t.Fatalf("expected at least one fill, got:\n%s", fillData)
	}

	equityData, err := os.ReadFile(equity)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(equityData)), "\n")
	if len(lines) != 73 {
		t.Fatalf("expected header plus 72 equity rows, got %d lines", len(lines))
	}
}

// Same seed and data twice must yield byte-identical journals.
func TestBacktestDeterministicReplay(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCandlesCSV(t, dir)

	var journals [2][]byte
	for i := range journals {
		fills := filepath.Join(dir, fmt.Sprintf("fills-%d.csv", i))
		equity := filepath.Join(dir, fmt.Sprintf("equity-%d.csv", i))
		cfgPath := writeConfig(t, dir, csvPath, fills, equity)

		run(t, "backtest", "-f", cfgPath)

		data, err := os.ReadFile(fills)
		if err != nil {
			t.Fatal(err)
		}
		journals[i] = data
	}

	if string(journals[0]) != string(journals[1]) {
		t.Fatalf("fill journals differ between identical runs:\n--- run 0\n%s\n--- run 1\n%s",
			journals[0], journals[1])
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "generated.yaml")

	run(t, "config", "init", "-o", path)
	out := run(t, "config", "validate", "-f", path)
	if !strings.Contains(out, "is valid") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	if !strings.Contains(out, "upquant version") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
