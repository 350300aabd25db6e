package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swarm/market"
)

func feedUptrend(adx *ADX, n int) {
	for i := 0; i < n; i++ {
		p := float64(i)
		adx.Update(market.Candle{Open: p, High: p + 2, Low: p, Close: p + 1})
	}
}

func TestADX_WarmupAndReady(t *testing.T) {
	adx := NewADX(3)
	assert.Equal(t, 6, adx.Warmup())
	assert.Equal(t, "ADX(3)", adx.Name())

	// one candle to start, three deltas to seed the sums, three DX values
	feedUptrend(adx, 5)
	assert.False(t, adx.Ready())

	adx.Update(market.Candle{Open: 5, High: 7, Low: 5, Close: 6})
	require.True(t, adx.Ready())

	// only upward movement: all DM is +DM
	assert.InDelta(t, 100.0, adx.Value(), 1e-9)
	assert.InDelta(t, 50.0, adx.PlusDI(), 1e-9)
	assert.Zero(t, adx.MinusDI())
}

func TestADX_FlatMarketIsZero(t *testing.T) {
	adx := NewADX(3)
	for i := 0; i < 12; i++ {
		adx.Update(market.Candle{Open: 100, High: 100, Low: 100, Close: 100})
	}
	require.True(t, adx.Ready())
	assert.Zero(t, adx.Value())
	assert.Zero(t, adx.PlusDI())
}

func TestADX_Reset(t *testing.T) {
	adx := NewADX(2)
	feedUptrend(adx, 10)
	require.True(t, adx.Ready())

	adx.Reset()
	assert.False(t, adx.Ready())
	assert.Zero(t, adx.Value())
	assert.Equal(t, 4, adx.Warmup())
}
