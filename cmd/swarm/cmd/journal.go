package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/swarm/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the decision journal",
	Long: `Query and display decision journal entries from the SQLite database.

Subcommands:
  recent - List the newest entries, optionally of one type
  entry  - Show one entry by id

Examples:
  swarm journal recent -n 20
  swarm journal recent --type trade --symbol BTC/USDT
  swarm journal entry 01HZX3J8Y4...`,
}

var journalRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the newest journal entries",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecent,
}

var journalEntryCmd = &cobra.Command{
	Use:   "entry <id>",
	Short: "Show one journal entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEntry,
}

var (
	journalDBPath string
	journalLimit  int
	journalType   string
	journalSymbol string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRecentCmd)
	journalCmd.AddCommand(journalEntryCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./data/journal.db", "path to the journal SQLite DB")
	journalRecentCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "number of entries (0 for all)")
	journalRecentCmd.Flags().StringVarP(&journalType, "type", "t", "", "entry type (trade, regime, info, error)")
	journalRecentCmd.Flags().StringVarP(&journalSymbol, "symbol", "s", "", "restrict to one pair (with --type)")
}

func runJournalRecent(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	var entries []journal.Entry
	if journalType != "" {
		entries, err = j.ByType(cmd.Context(), journal.EntryType(journalType), journalSymbol, journalLimit)
	} else {
		entries, err = j.Recent(cmd.Context(), journalLimit)
	}
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}

	return printEntries(cmd.OutOrStdout(), entries)
}

func runJournalEntry(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	e, err := j.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get entry: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "* %s %s\n", e.Type, e.ID)
	fmt.Fprintf(out, "  - Time: %s\n", e.Time.Format(time.RFC3339))
	if e.Symbol != "" {
		fmt.Fprintf(out, "  - Symbol: %s %s\n", e.Symbol, e.Timeframe)
	}
	fmt.Fprintf(out, "  - Payload: %s\n", e.Payload)
	return nil
}

func printEntries(out io.Writer, entries []journal.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSYMBOL\tTF\tPAYLOAD")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Type, e.Symbol, e.Timeframe, e.Payload)
	}
	return w.Flush()
}
