package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swarm/market"
)

// ATR is a streaming Average True Range: the simple mean of the last period
// true ranges. The first candle's true range is its high-low range.
type ATR struct {
	period      int
	ranges      []float64
	prev        market.Candle
	hasPrevious bool
}

// NewATR creates a new Average True Range indicator with the given period
func NewATR(period int) *ATR {
	return &ATR{period: period, ranges: make([]float64, 0, period)}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }
func (a *ATR) Warmup() int  { return a.period }

func (a *ATR) Reset() {
	a.ranges = a.ranges[:0]
	a.hasPrevious = false
}

func (a *ATR) Update(c market.Candle) {
	tr := c.High - c.Low
	if a.hasPrevious {
		tr = TrueRange(c, a.prev)
	}
	a.ranges = append(a.ranges, tr)
	if len(a.ranges) > a.period {
		a.ranges = a.ranges[1:]
	}
	a.prev = c
	a.hasPrevious = true
}

func (a *ATR) Ready() bool { return a.period > 0 && len(a.ranges) >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	sum := 0.0
	for _, r := range a.ranges {
		sum += r
	}
	return sum / float64(len(a.ranges))
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
