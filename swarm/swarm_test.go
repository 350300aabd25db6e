package swarm

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swarm/advisor"
	"github.com/rustyeddy/swarm/broker"
	"github.com/rustyeddy/swarm/config"
	"github.com/rustyeddy/swarm/feeds"
	"github.com/rustyeddy/swarm/journal"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/regime"
	"github.com/rustyeddy/swarm/risk"
	"github.com/rustyeddy/swarm/state"
	"github.com/rustyeddy/swarm/strategies"
)

const (
	alwaysLong = "test_always_long"
	alwaysExit = "test_always_exit"
	alsoLong   = "test_also_long"
)

type lastBar struct {
	id  string
	typ strategies.SignalType
}

func (s lastBar) ID() string           { return s.id }
func (lastBar) Params() map[string]any { return map[string]any{} }
func (s lastBar) GenerateSignals(cs []market.Candle) []strategies.Signal {
	if len(cs) == 0 {
		return nil
	}
	last := cs[len(cs)-1]
	return []strategies.Signal{{
		Time:         last.Time,
		Type:         s.typ,
		Price:        last.Close,
		SizeFraction: 0.5,
		Meta:         map[string]any{"reason": "test"},
	}}
}

func init() {
	strategies.Register(alwaysLong, func(cfg strategies.Config) (strategies.Strategy, error) {
		return lastBar{id: cfg.ID, typ: strategies.EntryLong}, nil
	})
	strategies.Register(alsoLong, func(cfg strategies.Config) (strategies.Strategy, error) {
		return lastBar{id: cfg.ID, typ: strategies.EntryLong}, nil
	})
	strategies.Register(alwaysExit, func(cfg strategies.Config) (strategies.Strategy, error) {
		return lastBar{id: cfg.ID, typ: strategies.ExitLong}, nil
	})
}

type fixedCandles struct {
	n     int
	price float64
	err   error
}

func (f fixedCandles) Candles(_ context.Context, _, _ string, limit int) ([]market.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	n := f.n
	if limit > 0 && n > limit {
		n = limit
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			Time:  base.Add(time.Duration(i) * 15 * time.Minute),
			Open:  f.price,
			High:  f.price,
			Low:   f.price,
			Close: f.price,
		}
	}
	return out, nil
}

func bullish(id string, confidence float64) advisor.Advisor {
	return advisor.Func{
		AdvisorID:   id,
		AdvisorRole: "test",
		Fn: func(context.Context, market.Features) (advisor.Response, error) {
			return advisor.Response{Sentiment: 0.8, Confidence: confidence}, nil
		},
	}
}

func failing(id string) advisor.Advisor {
	return advisor.Func{
		AdvisorID: id,
		Fn: func(context.Context, market.Features) (advisor.Response, error) {
			return advisor.Response{}, errors.New("timeout")
		},
	}
}

func newStore(t *testing.T, approved ...string) *lab.SQLiteStore {
	t.Helper()

	s, err := lab.NewSQLite(filepath.Join(t.TempDir(), "lab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for _, id := range approved {
		require.NoError(t, s.UpsertStrategy(ctx, id, "BTC/USDT", "15m", nil))
		require.NoError(t, s.SetStrategyStatus(ctx, id, lab.Approved))
	}
	return s
}

func btcFeatures() *feeds.Static {
	return feeds.NewStatic(map[string]map[string]float64{
		"BTC": {
			market.FeaturePrice:          100,
			market.FeatureRealizedVol24h: 0.03,
		},
	})
}

type fixture struct {
	deps     Deps
	settings Settings
}

func newFixture(t *testing.T, approved ...string) *fixture {
	return &fixture{
		deps: Deps{
			Advisors: []advisor.Advisor{bullish("a", 0.9), bullish("b", 0.9)},
			Store:    newStore(t, approved...),
			Features: btcFeatures(),
			Candles:  fixedCandles{n: 50, price: 100},
			Executor: broker.NewDryRun(10_000),
		},
		settings: DefaultSettings(),
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(f.deps, f.settings, zerolog.Nop())
}

func TestRunCycle_Traded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysLong)
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()
	f.deps.Journal = j
	st := state.New(0)
	f.deps.State = st

	p := f.pipeline()
	pc := NewPairContext("BTC/USDT", "15m", true)

	rep := p.RunCycle(context.Background(), pc, 1)
	require.Equal(t, OutcomeTraded, rep.Outcome)
	assert.Equal(t, []string{alwaysLong}, pc.Approved)
	assert.Len(t, rep.Opinions, 2)
	assert.InDelta(t, 0.9, rep.Consensus.Confidence, 1e-12)
	assert.InDelta(t, 0.05, rep.Budget, 1e-12)
	require.Len(t, rep.Fills, 1)
	assert.Equal(t, market.Buy, rep.Fills[0].Side)
	assert.InDelta(t, 5.0, rep.Fills[0].Quantity, 1e-9)
	assert.Equal(t, 100.0, rep.Fills[0].Price)

	assert.Equal(t, 1, st.Counters().Executed)
	reg := st.Regime("BTC/USDT")
	assert.Equal(t, rep.Scaled.Label, reg.Label)
	assert.False(t, reg.UpdatedAt.IsZero())
	assert.Equal(t, 100.0, reg.Features.Get(market.FeaturePrice))
	assert.Len(t, st.History("BTC/USDT"), 1)

	entries, err := j.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.TypeTrade, entries[0].Type)
	assert.Equal(t, journal.TypeRegime, entries[1].Type)

	var tr journal.Trade
	require.NoError(t, entries[0].Decode(&tr))
	assert.Equal(t, alwaysLong, tr.StrategyID)
	assert.InDelta(t, 0.05, tr.Fraction, 1e-12)

	var rg journal.Regime
	require.NoError(t, entries[1].Decode(&rg))
	assert.Equal(t, "long", rg.Direction)
	assert.Equal(t, rep.Scaled.Label.String(), rg.Label)

	again := p.RunCycle(context.Background(), pc, 2)
	assert.Equal(t, OutcomeBlocked, again.Outcome)
	require.Len(t, again.Rejected, 1)
	assert.Equal(t, DispositionBlocked, again.Rejected[0].Disposition)
	assert.Contains(t, again.Rejected[0].Reason, "CORRELATED_EXPOSURE")
}

func TestRunCycle_ShortCircuits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		approved []string
		enabled  bool
		mutate   func(f *fixture)
		want     string
	}{
		{
			name:     "disabled pair",
			approved: []string{alwaysLong},
			want:     OutcomeDisabled,
		},
		{
			name:    "no approved strategies",
			enabled: true,
			want:    OutcomeNoApproved,
		},
		{
			name:     "no feature snapshot",
			approved: []string{alwaysLong},
			enabled:  true,
			mutate:   func(f *fixture) { f.deps.Features = feeds.NewStatic(nil) },
			want:     OutcomeNoFeatures,
		},
		{
			name:     "every advisor fails",
			approved: []string{alwaysLong},
			enabled:  true,
			mutate: func(f *fixture) {
				f.deps.Advisors = []advisor.Advisor{failing("x"), failing("y")}
			},
			want: OutcomeNoOpinions,
		},
		{
			name:     "confidence below threshold",
			approved: []string{alwaysLong},
			enabled:  true,
			mutate: func(f *fixture) {
				f.deps.Advisors = []advisor.Advisor{bullish("a", 0.4)}
			},
			want: OutcomeLowConfidence,
		},
		{
			name:     "no candles",
			approved: []string{alwaysLong},
			enabled:  true,
			mutate:   func(f *fixture) { f.deps.Candles = fixedCandles{} },
			want:     OutcomeNoCandles,
		},
		{
			name:     "candle source error",
			approved: []string{alwaysLong},
			enabled:  true,
			mutate: func(f *fixture) {
				f.deps.Candles = fixedCandles{err: errors.New("exchange down")}
			},
			want: OutcomeNoCandles,
		},
		{
			name:     "strategy never signals",
			approved: []string{strategies.Noop},
			enabled:  true,
			want:     OutcomeNoTrades,
		},
		{
			name:     "zero regime cap",
			approved: []string{alwaysLong},
			enabled:  true,
			mutate: func(f *fixture) {
				f.settings.RegimeCaps = map[regime.Label]float64{regime.Chop: 0}
			},
			want: OutcomeNoBudget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, tt.approved...)
			if tt.mutate != nil {
				tt.mutate(f)
			}
			pc := NewPairContext("BTC/USDT", "15m", tt.enabled)
			rep := f.pipeline().RunCycle(context.Background(), pc, 1)
			assert.Equal(t, tt.want, rep.Outcome)
			assert.Empty(t, rep.Fills)
		})
	}
}

func TestRunCycle_ValidatorRejects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysLong)
	f.settings.Policy.MaxPositionFrac = 0.01
	st := state.New(0)
	f.deps.State = st

	rep := f.pipeline().RunCycle(context.Background(), NewPairContext("BTC/USDT", "15m", true), 1)
	assert.Equal(t, OutcomeBlocked, rep.Outcome)
	require.Len(t, rep.Rejected, 1)
	assert.Equal(t, DispositionRejected, rep.Rejected[0].Disposition)
	assert.Contains(t, rep.Rejected[0].Reason, "SIZE_TOO_LARGE")
	assert.Equal(t, 1, st.Counters().Rejected)
}

func TestRunCycle_SplitsBudgetAcrossStrategies(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysLong, alsoLong)
	f.settings.Policy.MaxCorrelatedExposure = 1

	rep := f.pipeline().RunCycle(context.Background(), NewPairContext("BTC/USDT", "15m", true), 1)
	require.Equal(t, OutcomeTraded, rep.Outcome)
	require.Len(t, rep.Fills, 2)

	total := 0.0
	for _, fill := range rep.Fills {
		total += fill.Quantity * fill.Price / 10_000
	}
	assert.InDelta(t, rep.Budget, total, 1e-6)
}

type lossyExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *lossyExecutor) Execute(_ context.Context, o broker.Order) (broker.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return broker.Fill{Symbol: o.Symbol, Side: o.Side, Quantity: 1, Price: o.Price, RealizedPnL: -1_000}, nil
}

func (e *lossyExecutor) OpenPositions(context.Context) ([]broker.Position, error) {
	return nil, nil
}

func TestRunCycle_FailsafePauses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysExit)
	f.deps.Executor = &lossyExecutor{}
	st := state.New(0)
	f.deps.State = st

	rep := f.pipeline().RunCycle(context.Background(), NewPairContext("BTC/USDT", "15m", true), 1)
	require.Equal(t, OutcomeTraded, rep.Outcome)
	assert.Equal(t, market.Sell, rep.Fills[0].Side)

	paused, reason := st.Paused()
	assert.True(t, paused)
	assert.Equal(t, "daily loss limit", reason)
	assert.Equal(t, 1, st.Counters().Losses)
}

func TestRunCycle_SellWithoutPositionFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysExit)
	rep := f.pipeline().RunCycle(context.Background(), NewPairContext("BTC/USDT", "15m", true), 1)
	assert.Equal(t, OutcomeBlocked, rep.Outcome)
	require.Len(t, rep.Rejected, 1)
	assert.Equal(t, DispositionFailed, rep.Rejected[0].Disposition)
	assert.Contains(t, rep.Rejected[0].Reason, broker.ErrNoPosition.Error())
}

func TestBuildContexts(t *testing.T) {
	t.Parallel()

	off := false
	pcs := BuildContexts([]config.PairConfig{
		{Symbol: "BTC/USDT", Timeframe: "1h"},
		{Symbol: "ETH/USDT", Enabled: &off},
	})
	require.Len(t, pcs, 2)
	assert.Equal(t, "BTC", pcs[0].Base)
	assert.Equal(t, "USDT", pcs[0].Quote)
	assert.True(t, pcs[0].Enabled)
	assert.Equal(t, "15m", pcs[1].Timeframe)
	assert.False(t, pcs[1].Enabled)
	assert.Nil(t, pcs[0].Approved)
}

func TestPipeline_FeatureMaxAge(t *testing.T) {
	t.Parallel()

	cached := func(age time.Duration) market.Features {
		f := market.NewFeatures("BTC", time.Now().UTC().Add(-age))
		f.Values[market.FeaturePrice] = 1
		return f
	}

	tests := []struct {
		name   string
		maxAge time.Duration
		cached market.Features
		want   float64
	}{
		{name: "fresh cache", maxAge: time.Minute, cached: cached(0), want: 1},
		{name: "stale cache", maxAge: time.Minute, cached: cached(time.Hour), want: 100},
		{name: "no max age", cached: cached(0), want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, alwaysLong)
			f.settings.FeatureMaxAge = tt.maxAge
			p := f.pipeline()
			p.State.SetFeatures(tt.cached)

			got, ok := p.features(context.Background(), NewPairContext("BTC/USDT", "15m", true), zerolog.Nop())
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Get(market.FeaturePrice))
		})
	}
}

func TestLoop_Run(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysLong)
	p := f.pipeline()
	pcs := []*PairContext{
		NewPairContext("BTC/USDT", "15m", true),
		NewPairContext("ETH/USDT", "15m", true),
	}

	var reports []CycleReport
	l := NewLoop(p, pcs, time.Millisecond, zerolog.Nop())
	l.FeatureInterval = time.Millisecond
	l.MaxIterations = 3
	l.OnCycle = func(r CycleReport) { reports = append(reports, r) }

	require.NoError(t, l.Run(context.Background()))
	require.Len(t, reports, 6)
	for i, r := range reports {
		assert.Equal(t, i/2+1, r.Iteration)
	}
	assert.Equal(t, "BTC/USDT", reports[0].Symbol)
	assert.Equal(t, OutcomeTraded, reports[0].Outcome)
	assert.Equal(t, "ETH/USDT", reports[1].Symbol)
	assert.Equal(t, OutcomeNoApproved, reports[1].Outcome)

	_, ok := p.State.Features("BTC")
	assert.True(t, ok)
}

func TestLoop_StopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysLong)
	l := NewLoop(f.pipeline(), []*PairContext{NewPairContext("BTC/USDT", "15m", true)}, time.Hour, zerolog.Nop())
	l.FeatureInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	l.OnCycle = func(CycleReport) {
		n++
		cancel()
	}

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 1, n)
}

func TestLoop_SkipsWhilePaused(t *testing.T) {
	t.Parallel()

	f := newFixture(t, alwaysLong)
	fs := risk.NewFailsafe(0.05, 10_000)
	fs.Record(-1_000)
	f.deps.Failsafe = fs
	f.deps.State = state.New(0)
	f.deps.State.Pause("daily loss limit")

	n := 0
	l := NewLoop(f.pipeline(), []*PairContext{NewPairContext("BTC/USDT", "15m", true)}, 0, zerolog.Nop())
	l.MaxIterations = 2
	l.OnCycle = func(CycleReport) { n++ }
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 0, n)

	f2 := newFixture(t, alwaysLong)
	f2.deps.State = state.New(0)
	f2.deps.State.Pause("daily loss limit")
	l2 := NewLoop(f2.pipeline(), []*PairContext{NewPairContext("BTC/USDT", "15m", true)}, 0, zerolog.Nop())
	l2.MaxIterations = 1
	l2.OnCycle = func(CycleReport) { n++ }
	require.NoError(t, l2.Run(context.Background()))
	assert.Equal(t, 1, n)
	paused, _ := f2.deps.State.Paused()
	assert.False(t, paused)
}
