package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swarm/backtest"
	"github.com/rustyeddy/swarm/internal/metrics"
	"github.com/rustyeddy/swarm/journal"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/regime"
	"github.com/rustyeddy/swarm/risk"
	"github.com/rustyeddy/swarm/state"
)

func newTestServer(t *testing.T) (*Server, Deps) {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()

	store, err := lab.NewSQLite(filepath.Join(dir, "lab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.UpsertStrategy(ctx, "btc_breakout_v1", "BTC/USDT", "15m", map[string]any{"lookback": 40}))
	_, err = store.RecordBacktest(ctx, lab.BacktestRecord{
		StrategyID: "btc_breakout_v1",
		Metrics:    backtest.Metrics{TotalReturn: 0.2, NumTrades: 12},
	})
	require.NoError(t, err)

	j, err := journal.NewSQLite(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	require.NoError(t, j.LogRegime(ctx, "BTC/USDT", "15m", journal.Regime{Label: "trend"}))
	require.NoError(t, j.LogInfo(ctx, "BTC/USDT", "hello", nil))

	st := state.New(0)
	st.RecordTrade(25)
	st.RecordRejected()
	f := market.NewFeatures("BTC", time.Now())
	f.Values[market.FeatureRealizedVol24h] = 0.03
	st.SetRegime("BTC/USDT", regime.Trend, f)

	fs := risk.NewFailsafe(0.05, 10_000)
	fs.Record(25)

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	rec.Cycle("BTC/USDT", "traded", 0.1)

	deps := Deps{
		State:    st,
		Store:    store,
		Journal:  j,
		Failsafe: fs,
		Gatherer: reg,
		Symbols:  []string{"BTC/USDT", "ETH/USDT"},
	}
	return NewServer(":0", deps, zerolog.Nop()), deps
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	rec := get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TradesExecuted)
	assert.Equal(t, 1, body.TradesRejected)
	assert.Equal(t, 25.0, body.RealizedPnL)
	assert.Equal(t, 25.0, body.DailyPnL)
	assert.False(t, body.Paused)
	require.Len(t, body.Pairs, 2)
	assert.Equal(t, "trend", body.Pairs[0].Regime)
	require.NotNil(t, body.Pairs[0].RegimeUpdatedAt)
	assert.Equal(t, 0.03, body.Pairs[0].Features[market.FeatureRealizedVol24h])
	assert.Equal(t, "unknown", body.Pairs[1].Regime)
	assert.Nil(t, body.Pairs[1].RegimeUpdatedAt)
}

func TestStrategies(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	rec := get(t, s, "/api/strategies")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Strategies []strategyItem `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Strategies, 1)
	got := body.Strategies[0]
	assert.Equal(t, "btc_breakout_v1", got.ID)
	assert.Equal(t, "experimental", got.Status)
	assert.Equal(t, 1, got.NumBacktests)
	require.NotNil(t, got.Latest)
	assert.Equal(t, 12, got.Latest.NumTrades)
}

func TestJournalRecent(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	rec := get(t, s, "/api/journal/recent?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []entryItem `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "info", body.Entries[0].Type)

	rec = get(t, s, "/api/journal/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Entries, 2)

	rec = get(t, s, "/api/journal/recent?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsistencyAndMetrics(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	rec := get(t, s, "/api/consistency")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "swarm_cycles_total"))
}

func TestEmptyDeps(t *testing.T) {
	t.Parallel()

	s := NewServer(":0", Deps{Gatherer: prometheus.NewRegistry()}, zerolog.Nop())
	for _, path := range []string{"/api/summary", "/api/strategies", "/api/journal/recent"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
