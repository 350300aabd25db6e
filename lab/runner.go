package lab

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swarm/backtest"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/pkg/id"
	"github.com/rustyeddy/swarm/strategies"
)

const (
	DefaultPair      = "BTC/USDT"
	DefaultTimeframe = "15m"
)

type RunRequest struct {
	StrategyID     string
	Pair           string
	Timeframe      string
	CSVPath        string
	InitialCapital float64
	// OutDir receives the run's artifacts. Defaults to the CSV's directory.
	OutDir string
	Params map[string]any
	// Report also writes an Org-mode report next to the CSV artifacts.
	Report bool
}

type RunResult struct {
	RunID      string
	Result     backtest.Result
	Status     Status
	Params     map[string]any
	EquityPath string
	TradesPath string
	ReportPath string
}

// Runner is the offline backtest runner: it replays a strategy over a
// candle CSV, writes the run's artifacts and records it in the store.
type Runner struct {
	Store Store
	log   zerolog.Logger
}

func NewRunner(store Store, log zerolog.Logger) *Runner {
	return &Runner{Store: store, log: log}
}

// Run fails with an error wrapping fs.ErrNotExist when the CSV is missing,
// market.ErrNoTimestampColumn when it has no timestamp column and
// strategies.ErrUnknownStrategy for an unregistered id.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.Pair == "" {
		req.Pair = DefaultPair
	}
	if req.Timeframe == "" {
		req.Timeframe = DefaultTimeframe
	}
	if req.InitialCapital <= 0 {
		req.InitialCapital = backtest.DefaultInitialCapital
	}
	if req.OutDir == "" {
		req.OutDir = filepath.Dir(req.CSVPath)
	}

	candles, err := market.LoadCandlesCSV(req.CSVPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("load candles: %w", err)
	}

	strat, err := strategies.New(strategies.Config{
		ID:        req.StrategyID,
		Pair:      req.Pair,
		Timeframe: req.Timeframe,
		Params:    req.Params,
	})
	if err != nil {
		return RunResult{}, err
	}

	if err := r.Store.UpsertStrategy(ctx, strat.ID(), req.Pair, req.Timeframe, strat.Params()); err != nil {
		return RunResult{}, err
	}

	engine := backtest.NewEngine(req.InitialCapital, r.log)
	res, err := engine.Run(strat, candles)
	if err != nil {
		return RunResult{}, err
	}

	runAt := time.Now().UTC()
	out := RunResult{
		RunID:      id.NewAt(runAt),
		Result:     res,
		Status:     Experimental,
		Params:     strat.Params(),
		EquityPath: backtest.EquityFile(req.OutDir, strat.ID()),
		TradesPath: backtest.TradesFile(req.OutDir, strat.ID()),
	}

	if err := backtest.WriteEquityCSV(out.EquityPath, res.Equity); err != nil {
		return out, fmt.Errorf("equity artifact: %w", err)
	}
	if err := backtest.WriteTradesCSV(out.TradesPath, res.Trades); err != nil {
		return out, fmt.Errorf("trades artifact: %w", err)
	}

	if _, err := r.Store.RecordBacktest(ctx, BacktestRecord{
		ID:             out.RunID,
		StrategyID:     strat.ID(),
		RunAt:          runAt,
		SampleStart:    res.Start,
		SampleEnd:      res.End,
		InitialCapital: req.InitialCapital,
		Metrics:        res.Metrics,
		EquityPath:     out.EquityPath,
		TradesPath:     out.TradesPath,
	}); err != nil {
		return out, err
	}

	if sum, err := r.summary(ctx, strat.ID()); err == nil {
		out.Status = sum.Status
	}

	if req.Report {
		out.ReportPath = backtest.ReportFile(req.OutDir, out.RunID)
		rep := Report(out, req)
		if err := backtest.WriteOrgReport(out.ReportPath, rep); err != nil {
			return out, fmt.Errorf("org report: %w", err)
		}
	}

	r.log.Info().
		Str("run_id", out.RunID).
		Str("strategy", strat.ID()).
		Str("equity", out.EquityPath).
		Str("trades", out.TradesPath).
		Msg("backtest recorded")
	return out, nil
}

func (r *Runner) summary(ctx context.Context, sid string) (StrategySummary, error) {
	sums, err := r.Store.StrategiesSummary(ctx)
	if err != nil {
		return StrategySummary{}, err
	}
	for _, s := range sums {
		if s.ID == sid {
			return s, nil
		}
	}
	return StrategySummary{}, fmt.Errorf("%w: %q", ErrStrategyNotFound, sid)
}

// Report builds the printable report for a finished run.
func Report(out RunResult, req RunRequest) backtest.Report {
	return backtest.Report{
		RunID:      out.RunID,
		Created:    time.Now(),
		StrategyID: out.Result.StrategyID,
		Pair:       req.Pair,
		Timeframe:  req.Timeframe,
		Dataset:    req.CSVPath,
		Params:     out.Params,
		Status:     string(out.Status),
		Result:     out.Result,
		EquityPath: out.EquityPath,
		TradesPath: out.TradesPath,
	}
}
