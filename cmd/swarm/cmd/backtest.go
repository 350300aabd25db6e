package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swarm/backtest"
	"github.com/rustyeddy/swarm/lab"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest a strategy over a candle CSV and record the run",
	Long: `Replay a registered strategy over a candle CSV, write the equity and
trade artifacts and record the run in the lab database.

The CSV must have a timestamp column (RFC3339 or epoch milliseconds) and
open, high, low, close and volume columns.

Examples:
  swarm backtest --strategy_id btc_breakout_v1 --csv data/btcusdt_15m.csv
  swarm backtest --strategy_id ema_cross_v1 --csv data/btcusdt_15m.csv \
      --params fast_period=12 --params slow_period=26 --report`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btStrategyID string
	btCSV        string
	btPair       string
	btTimeframe  string
	btCapital    float64
	btDB         string
	btOut        string
	btReport     bool
	btParams     []string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btStrategyID, "strategy_id", "", "registered strategy id (required)")
	backtestCmd.Flags().StringVar(&btCSV, "csv", "", "candle CSV path (required)")
	backtestCmd.Flags().StringVar(&btPair, "pair", lab.DefaultPair, "trading pair")
	backtestCmd.Flags().StringVar(&btTimeframe, "timeframe", lab.DefaultTimeframe, "candle timeframe")
	backtestCmd.Flags().Float64Var(&btCapital, "initial_capital", 10_000, "starting capital")
	backtestCmd.Flags().StringVar(&btDB, "db", "./data/lab.db", "lab SQLite database")
	backtestCmd.Flags().StringVar(&btOut, "out", "", "artifact directory (defaults to the CSV's directory)")
	backtestCmd.Flags().BoolVar(&btReport, "report", false, "also write an Org-mode report")
	backtestCmd.Flags().StringArrayVar(&btParams, "params", nil, "strategy parameter key=value (repeatable)")

	backtestCmd.MarkFlagRequired("strategy_id")
	backtestCmd.MarkFlagRequired("csv")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log, err := cliLogger()
	if err != nil {
		return err
	}

	params, err := parseParams(btParams)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(btDB), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	store, err := lab.NewSQLite(btDB)
	if err != nil {
		return fmt.Errorf("open lab db: %w", err)
	}
	defer store.Close()

	req := lab.RunRequest{
		StrategyID:     btStrategyID,
		Pair:           btPair,
		Timeframe:      btTimeframe,
		CSVPath:        btCSV,
		InitialCapital: btCapital,
		OutDir:         btOut,
		Params:         params,
		Report:         btReport,
	}

	out, err := lab.NewRunner(store, log).Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("backtest %s: %w", btStrategyID, err)
	}

	backtest.PrintSummary(cmd.OutOrStdout(), lab.Report(out, req))
	if out.ReportPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", out.ReportPath)
	}
	return nil
}

// parseParams turns key=value pairs into strategy params. Integers, floats
// and booleans are parsed; anything else stays a string.
func parseParams(kvs []string) (map[string]any, error) {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("param %q: want key=value", kv)
		}
		v = strings.TrimSpace(v)
		if i, err := strconv.Atoi(v); err == nil {
			out[k] = i
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
		} else {
			out[k] = v
		}
	}
	return out, nil
}
