// Package indicators provides technical analysis indicators for trading
package indicators

import (
	"fmt"

	"github.com/rustyeddy/swarm/market"
)

// Indicator computes a single streaming value from candles.
// It is deterministic and safe to use in live loops and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* candle and updates internal state.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value, or 0 when !Ready().
	Value() float64
}

// Moving average kinds accepted by NewMovingAverage.
const (
	KindSMA = "sma"
	KindEMA = "ema"
)

// NewMovingAverage returns a streaming moving average of the given kind.
// An empty kind means EMA.
func NewMovingAverage(kind string, period int) (Indicator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	switch kind {
	case KindSMA:
		return NewMA(period), nil
	case KindEMA, "":
		return NewEMA(period), nil
	}
	return nil, fmt.Errorf("unknown moving average %q", kind)
}
