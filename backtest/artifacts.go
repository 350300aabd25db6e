package backtest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/template"
	"time"
)

// EquityFile and TradesFile name a run's CSV artifacts.
func EquityFile(dir, runID string) string { return filepath.Join(dir, "equity_"+runID+".csv") }
func TradesFile(dir, runID string) string { return filepath.Join(dir, "trades_"+runID+".csv") }
func ReportFile(dir, runID string) string { return filepath.Join(dir, "backtest_"+runID+".org") }

// WriteEquityCSV writes one timestamp,equity row per bar.
func WriteEquityCSV(path string, equity []EquityPoint) error {
	rows := make([][]string, 0, len(equity)+1)
	rows = append(rows, []string{"timestamp", "equity"})
	for _, p := range equity {
		rows = append(rows, []string{p.Time.UTC().Format(time.RFC3339), f(p.Equity)})
	}
	return writeCSV(path, rows)
}

// WriteTradesCSV writes one row per completed trade.
func WriteTradesCSV(path string, trades []TradeRecord) error {
	rows := make([][]string, 0, len(trades)+1)
	rows = append(rows, []string{
		"entry_time", "entry_price", "exit_time", "exit_price",
		"quantity", "pnl", "return_pct", "strategy_id", "forced_exit",
	})
	for _, t := range trades {
		rows = append(rows, []string{
			t.EntryTime.UTC().Format(time.RFC3339),
			f(t.EntryPrice),
			t.ExitTime.UTC().Format(time.RFC3339),
			f(t.ExitPrice),
			f(t.Quantity),
			f(t.PnL),
			f(t.ReturnPct),
			t.StrategyID,
			strconv.FormatBool(t.Forced),
		})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if err := w.WriteAll(rows); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

// Report is the data rendered into a run's Org-mode report.
type Report struct {
	RunID      string
	Created    time.Time
	StrategyID string
	Pair       string
	Timeframe  string
	Dataset    string
	Params     map[string]any
	Status     string

	Result Result

	EquityPath string
	TradesPath string
}

func (r Report) Wins() int {
	n := 0
	for _, t := range r.Result.Trades {
		if t.PnL > 0 {
			n++
		}
	}
	return n
}

func (r Report) Losses() int { return len(r.Result.Trades) - r.Wins() }

func (r Report) EndBalance() float64 {
	if len(r.Result.Equity) == 0 {
		return r.Result.InitialCapital
	}
	return r.Result.Equity[len(r.Result.Equity)-1].Equity
}

var reportFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var reportTemplate = template.Must(template.New("backtest").Funcs(reportFuncs).Parse(ReportOrgTemplate))

// WriteOrgReport renders r to path.
func WriteOrgReport(path string, r Report) error {
	buf := new(bytes.Buffer)
	if err := reportTemplate.Execute(buf, r); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

const ReportOrgTemplate = `
* BACKTEST: {{.StrategyID}} {{.Pair}} {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.StrategyID}}
:TIMEFRAME:   {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:PAIR:        {{.Pair}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Result.Start.Format "2006-01-02"}}
:END_DATE:    {{.Result.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .Result.InitialCapital}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:RETURN_PCT:  {{printf "%.2f" (mul100 .Result.Metrics.TotalReturn)}}
:MAX_DD_PCT:  {{printf "%.2f" (mul100 .Result.Metrics.MaxDrawdown)}}
:SHARPE:      {{printf "%.2f" .Result.Metrics.Sharpe}}
:TRADES:      {{.Result.Metrics.NumTrades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Result.Metrics.WinRate)}}
:PROFIT_FAC:  {{if ne .Result.Metrics.ProfitFactor 0.0}}{{printf "%.2f" .Result.Metrics.ProfitFactor}}{{else}}(profit-factor?){{end}}
{{- if .Status}}
:LAB_STATUS:  {{.Status}}
{{- end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter | Value |
|-----------+-------|
{{- range $k, $v := .Params}}
| {{$k}} | {{$v}} |
{{- end}}

** Performance Summary
- Total Return:     *{{printf "%.2f" (mul100 .Result.Metrics.TotalReturn)}}%*
- Max Drawdown:     *{{printf "%.2f" (mul100 .Result.Metrics.MaxDrawdown)}}%*
- Sharpe:           *{{printf "%.2f" .Result.Metrics.Sharpe}}*
- Win Rate:         *{{printf "%.2f" (mul100 .Result.Metrics.WinRate)}}%*
- Profit Factor:    *{{if ne .Result.Metrics.ProfitFactor 0.0}}{{printf "%.2f" .Result.Metrics.ProfitFactor}}{{else}}(profit-factor?){{end}}*

** Artifacts
{{- if .EquityPath}}
- Equity: [[file:{{.EquityPath}}]]
{{- end}}
{{- if .TradesPath}}
- Trades: [[file:{{.TradesPath}}]]
{{- end}}

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Result.Metrics.NumTrades}} |
`
