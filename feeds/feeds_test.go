package feeds

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swarm/market"
)

func TestStatic(t *testing.T) {
	t.Parallel()

	vals := map[string]float64{market.FeaturePrice: 50_000}
	s := NewStatic(map[string]map[string]float64{"BTC": vals})
	vals[market.FeaturePrice] = 1

	f, err := s.Snapshot(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", f.Asset)
	assert.Equal(t, 50_000.0, f.Get(market.FeaturePrice))

	_, err = s.Snapshot(context.Background(), "ETH")
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	s.Set("ETH", map[string]float64{market.FeatureSocialUrgency: 0.9})
	f, err = s.Snapshot(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 0.9, f.Get(market.FeatureSocialUrgency))
}

func TestFeatureKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "swarm:features:BTC", FeatureKey("swarm", "BTC"))
	assert.Equal(t, "features:BTC", FeatureKey("", "BTC"))
}

func TestParseFields(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f, skipped := ParseFields("BTC", map[string]string{
		market.FeaturePrice:          "50000.5",
		market.FeatureRealizedVol24h: "0.031",
		"source":                     "binance",
	}, now)

	assert.Equal(t, []string{"source"}, skipped)
	assert.Equal(t, 50000.5, f.Get(market.FeaturePrice))
	assert.Equal(t, 0.031, f.Get(market.FeatureRealizedVol24h))
	assert.False(t, f.Has("source"))
	assert.True(t, f.Time.Equal(now))

	stamped := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	f, skipped = ParseFields("BTC", map[string]string{
		"timestamp": stamped.Format(time.RFC3339Nano),
	}, now)
	assert.Empty(t, skipped)
	assert.True(t, f.Empty())
	assert.True(t, f.Time.Equal(stamped))
}

func TestCSVCandles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := CandleFile(dir, "BTC/USDT", "15m")
	assert.Equal(t, "btcusdt_15m.csv", filepath.Base(path))

	data := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01T00:30:00Z,3,3,3,3,1\n" +
		"2024-01-01T00:00:00Z,1,1,1,1,1\n" +
		"2024-01-01T00:15:00Z,2,2,2,2,1\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src := NewCSVCandles(dir)
	cs, err := src.Candles(context.Background(), "BTC/USDT", "15m", 2)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, 2.0, cs[0].Close)
	assert.Equal(t, 3.0, cs[1].Close)

	all, err := src.Candles(context.Background(), "BTC/USDT", "15m", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = src.Candles(context.Background(), "ETH/USDT", "15m", 10)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
