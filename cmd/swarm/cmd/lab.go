package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swarm/config"
	"github.com/rustyeddy/swarm/lab"
)

var labCmd = &cobra.Command{
	Use:   "lab",
	Short: "Inspect and gate recorded strategies",
	Long: `Work with the strategy lab database.

Subcommands:
  evaluate - Apply the lab gate to every strategy and persist the statuses
  list     - List strategies with their latest backtest metrics

Examples:
  swarm lab evaluate --db ./data/lab.db
  swarm lab list`,
}

var labEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Re-evaluate every strategy's status",
	Args:  cobra.NoArgs,
	RunE:  runLabEvaluate,
}

var labListCmd = &cobra.Command{
	Use:   "list",
	Short: "List strategies and their latest metrics",
	Args:  cobra.NoArgs,
	RunE:  runLabList,
}

var (
	labDBPath     string
	labConfigPath string
)

func init() {
	rootCmd.AddCommand(labCmd)
	labCmd.AddCommand(labEvaluateCmd)
	labCmd.AddCommand(labListCmd)

	labCmd.PersistentFlags().StringVarP(&labDBPath, "db", "d", "./data/lab.db", "path to the lab SQLite DB")
	labEvaluateCmd.Flags().StringVarP(&labConfigPath, "config", "c", "", "config file with lab thresholds (defaults used when empty)")
}

func runLabEvaluate(cmd *cobra.Command, args []string) error {
	log, err := cliLogger()
	if err != nil {
		return err
	}

	th := lab.DefaultThresholds()
	if labConfigPath != "" {
		cfg, err := config.LoadFromFile(labConfigPath)
		if err != nil {
			return err
		}
		th = cfg.Lab.Thresholds
	}

	store, err := lab.NewSQLite(labDBPath)
	if err != nil {
		return fmt.Errorf("open lab db: %w", err)
	}
	defer store.Close()

	ts, err := lab.NewGate(store, th, log).EvaluateAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tFROM\tTO\tREASON")
	for _, t := range ts {
		mark := ""
		if t.Changed() {
			mark = " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s%s\t%s\n", t.StrategyID, t.From, t.To, mark, t.Reason)
	}
	return w.Flush()
}

func runLabList(cmd *cobra.Command, args []string) error {
	store, err := lab.NewSQLite(labDBPath)
	if err != nil {
		return fmt.Errorf("open lab db: %w", err)
	}
	defer store.Close()

	sums, err := store.StrategiesSummary(cmd.Context())
	if err != nil {
		return fmt.Errorf("summaries: %w", err)
	}
	return printSummaries(cmd.OutOrStdout(), sums)
}

func printSummaries(out io.Writer, sums []lab.StrategySummary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tPAIR\tTF\tSTATUS\tRUNS\tTRADES\tRETURN\tSHARPE\tMAXDD\tPF")
	for _, s := range sums {
		if s.Latest == nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t-\t-\t-\t-\t-\n",
				s.ID, s.Pair, s.Timeframe, s.Status, s.NumBacktests)
			continue
		}
		m := s.Latest
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2f%%\t%.2f\t%.2f%%\t%.2f\n",
			s.ID, s.Pair, s.Timeframe, s.Status, s.NumBacktests,
			m.NumTrades, m.TotalReturn*100, m.Sharpe, m.MaxDrawdown*100, m.ProfitFactor)
	}

	counts := lab.CountByStatus(sums)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%d\n", k, counts[k])
	}
	return w.Flush()
}
