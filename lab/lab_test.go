package lab

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swarm/backtest"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/strategies"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "lab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func good() *backtest.Metrics {
	return &backtest.Metrics{
		TotalReturn:  0.25,
		MaxDrawdown:  -0.1,
		Sharpe:       1.8,
		WinRate:      0.55,
		ProfitFactor: 1.6,
		NumTrades:    40,
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()
	with := func(f func(m *backtest.Metrics)) *backtest.Metrics {
		m := good()
		f(m)
		return m
	}

	tests := []struct {
		name   string
		n      int
		latest *backtest.Metrics
		want   Status
	}{
		{"no backtests", 0, nil, InsufficientData},
		{"count without latest", 1, nil, InsufficientData},
		{"too few trades", 1, with(func(m *backtest.Metrics) { m.NumTrades = 29 }), InsufficientData},
		{"all thresholds met", 1, good(), Approved},
		{"exact thresholds", 1, &backtest.Metrics{
			TotalReturn: 0.1, MaxDrawdown: -0.3, Sharpe: 1.0, ProfitFactor: 1.3, NumTrades: 30,
		}, Approved},
		{"drawdown too deep", 1, with(func(m *backtest.Metrics) { m.MaxDrawdown = -0.31 }), Experimental},
		{"low sharpe", 1, with(func(m *backtest.Metrics) { m.Sharpe = 0.5 }), Experimental},
		{"negative return", 1, with(func(m *backtest.Metrics) { m.TotalReturn = -0.01 }), Rejected},
		{"no edge", 1, with(func(m *backtest.Metrics) { m.ProfitFactor = 0.9 }), Rejected},
		{"profit factor between gates", 1, with(func(m *backtest.Metrics) { m.ProfitFactor = 1.1 }), Experimental},
		{"no losing trades", 1, with(func(m *backtest.Metrics) {
			m.ProfitFactor = 0
			m.WinRate = 1
			m.AvgWin = 0.01
		}), Approved},
		{"zero profit factor with losers", 1, with(func(m *backtest.Metrics) {
			m.ProfitFactor = 0
			m.TotalReturn = 0.05
		}), Rejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Evaluate(tt.n, tt.latest, th)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Evaluate(tt.n, tt.latest, th))
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for _, s := range Statuses {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("live")
	assert.Error(t, err)
}

func TestSQLiteStore_UpsertPreservesStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertStrategy(ctx, "s1", "BTC/USDT", "15m", map[string]any{"lookback": 40}))
	sums, err := s.StrategiesSummary(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, Experimental, sums[0].Status)
	assert.Nil(t, sums[0].Latest)
	assert.Nil(t, sums[0].LastRunAt)
	assert.Equal(t, 0, sums[0].NumBacktests)
	assert.EqualValues(t, 40, sums[0].Params["lookback"])

	require.NoError(t, s.SetStrategyStatus(ctx, "s1", Approved))
	require.NoError(t, s.UpsertStrategy(ctx, "s1", "BTC/USDT", "1h", nil))

	sums, err = s.StrategiesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Approved, sums[0].Status)
	assert.Equal(t, "1h", sums[0].Timeframe)
	assert.Empty(t, sums[0].Params)

	err = s.SetStrategyStatus(ctx, "missing", Approved)
	assert.True(t, errors.Is(err, ErrStrategyNotFound))
}

func TestSQLiteStore_BacktestsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.UpsertStrategy(ctx, "s1", "BTC/USDT", "15m", nil))

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.RecordBacktest(ctx, BacktestRecord{
			StrategyID:     "s1",
			RunAt:          base.Add(time.Duration(i) * time.Hour),
			SampleStart:    base,
			SampleEnd:      base.Add(24 * time.Hour),
			InitialCapital: 10_000,
			Metrics:        backtest.Metrics{NumTrades: i + 1, AvgWin: 0.02, AvgLoss: 0.01},
			EquityPath:     "equity_s1.csv",
		})
		require.NoError(t, err)
	}

	runs, err := s.BacktestsForStrategy(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 3, runs[0].Metrics.NumTrades)
	assert.Equal(t, 1, runs[2].Metrics.NumTrades)
	assert.True(t, runs[0].RunAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, 0.02, runs[0].Metrics.AvgWin)
	assert.Equal(t, "equity_s1.csv", runs[0].EquityPath)
	assert.NotEmpty(t, runs[0].ID)

	sums, err := s.StrategiesSummary(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 3, sums[0].NumBacktests)
	require.NotNil(t, sums[0].Latest)
	assert.Equal(t, 3, sums[0].Latest.NumTrades)

	none, err := s.BacktestsForStrategy(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGate_EvaluateAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertStrategy(ctx, "fresh", "BTC/USDT", "15m", nil))
	require.NoError(t, s.UpsertStrategy(ctx, "winner", "BTC/USDT", "15m", nil))
	require.NoError(t, s.UpsertStrategy(ctx, "loser", "BTC/USDT", "15m", nil))

	_, err := s.RecordBacktest(ctx, BacktestRecord{StrategyID: "winner", Metrics: *good()})
	require.NoError(t, err)
	bad := *good()
	bad.TotalReturn = -0.2
	_, err = s.RecordBacktest(ctx, BacktestRecord{StrategyID: "loser", Metrics: bad})
	require.NoError(t, err)

	g := NewGate(s, DefaultThresholds(), zerolog.Nop())
	first, err := g.EvaluateAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)

	got := map[string]Transition{}
	for _, tr := range first {
		got[tr.StrategyID] = tr
	}
	assert.Equal(t, InsufficientData, got["fresh"].To)
	assert.Equal(t, Approved, got["winner"].To)
	assert.Equal(t, Rejected, got["loser"].To)
	assert.Equal(t, Experimental, got["winner"].From)
	assert.True(t, got["winner"].Changed())

	second, err := g.EvaluateAll(ctx)
	require.NoError(t, err)
	for _, tr := range second {
		assert.False(t, tr.Changed(), tr.StrategyID)
		assert.Equal(t, got[tr.StrategyID].To, tr.To)
	}

	ids, err := ApprovedFor(ctx, s, "BTC/USDT", "15m", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"winner"}, ids)

	ids, err = ApprovedFor(ctx, s, "BTC/USDT", "15m", []Status{Approved, Experimental, InsufficientData})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "winner"}, ids)

	ids, err = ApprovedFor(ctx, s, "ETH/USDT", "15m", nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func writeCandles(t *testing.T, dir string, n int) string {
	t.Helper()

	path := filepath.Join(dir, "btc_15m.csv")
	data := "timestamp,open,high,low,close,volume\n"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := 100.0 + float64(i%7)
		ts := base.Add(time.Duration(i) * 15 * time.Minute).Format(time.RFC3339)
		data += ts + "," + ftoa(p) + "," + ftoa(p+1) + "," + ftoa(p-1) + "," + ftoa(p) + ",10\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func ftoa(x float64) string { return strconv.FormatFloat(x, 'f', 2, 64) }

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t)
	r := NewRunner(s, zerolog.Nop())

	csvPath := writeCandles(t, dir, 120)
	out, err := r.Run(ctx, RunRequest{
		StrategyID: strategies.EMACrossV1,
		CSVPath:    csvPath,
		OutDir:     filepath.Join(dir, "out"),
		Report:     true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, Experimental, out.Status)
	assert.Equal(t, backtest.DefaultInitialCapital, out.Result.InitialCapital)
	assert.Len(t, out.Result.Equity, 120)

	for _, p := range []string{out.EquityPath, out.TradesPath, out.ReportPath} {
		_, err := os.Stat(p)
		require.NoError(t, err, p)
	}
	assert.Equal(t, "equity_ema_cross_v1.csv", filepath.Base(out.EquityPath))

	sums, err := s.StrategiesSummary(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, DefaultPair, sums[0].Pair)
	assert.Equal(t, DefaultTimeframe, sums[0].Timeframe)
	assert.Equal(t, 1, sums[0].NumBacktests)
	assert.EqualValues(t, 10, sums[0].Params["fast_period"])

	runs, err := s.BacktestsForStrategy(ctx, strategies.EMACrossV1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, out.RunID, runs[0].ID)
	assert.Equal(t, out.Result.Metrics.NumTrades, runs[0].Metrics.NumTrades)
}

func TestRunner_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	s := newTestStore(t)
	r := NewRunner(s, zerolog.Nop())

	_, err := r.Run(ctx, RunRequest{StrategyID: strategies.BTCBreakoutV1, CSVPath: filepath.Join(dir, "missing.csv")})
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	noTS := filepath.Join(dir, "no_ts.csv")
	require.NoError(t, os.WriteFile(noTS, []byte("time,open,high,low,close\n1,1,1,1,1\n"), 0o644))
	_, err = r.Run(ctx, RunRequest{StrategyID: strategies.BTCBreakoutV1, CSVPath: noTS})
	assert.True(t, errors.Is(err, market.ErrNoTimestampColumn))

	_, err = r.Run(ctx, RunRequest{StrategyID: "nope", CSVPath: writeCandles(t, dir, 10)})
	assert.True(t, errors.Is(err, strategies.ErrUnknownStrategy))

	sums, err := s.StrategiesSummary(ctx)
	require.NoError(t, err)
	assert.Empty(t, sums)
}
