package backtest

import (
	"fmt"
	"io"
	"time"
)

// PrintSummary writes a human readable summary of r.
func PrintSummary(w io.Writer, r Report) {
	m := r.Result.Metrics

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Strategy:      %s\n", r.StrategyID)
	fmt.Fprintf(w, "Pair:          %s\n", r.Pair)
	fmt.Fprintf(w, "Timeframe:     %s\n", r.Timeframe)
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Result.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.Result.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", m.NumTrades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins())
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses())
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Profit Factor: %.2f\n", m.ProfitFactor)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", r.Result.InitialCapital)
	fmt.Fprintf(w, "End Balance:   %.2f\n", r.EndBalance())
	fmt.Fprintf(w, "Return:        %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe:        %.2f\n", m.Sharpe)

	if r.Status != "" {
		fmt.Fprintf(w, "Lab Status:    %s\n", r.Status)
	}

	if r.EquityPath != "" || r.TradesPath != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Equity Curve:  %s\n", r.EquityPath)
		fmt.Fprintf(w, "Trades:        %s\n", r.TradesPath)
	}
	fmt.Fprintln(w)
}
