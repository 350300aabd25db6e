package indicators

import (
	"fmt"

	"github.com/rustyeddy/swarm/market"
)

// Channel tracks the highest high and lowest low of the last period candles.
type Channel struct {
	period int
	highs  []float64
	lows   []float64
}

func NewChannel(period int) *Channel {
	return &Channel{
		period: period,
		highs:  make([]float64, 0, period),
		lows:   make([]float64, 0, period),
	}
}

func (c *Channel) Name() string { return fmt.Sprintf("CHAN(%d)", c.period) }
func (c *Channel) Warmup() int  { return c.period }

func (c *Channel) Reset() {
	c.highs = c.highs[:0]
	c.lows = c.lows[:0]
}

func (c *Channel) Update(k market.Candle) {
	c.highs = append(c.highs, k.High)
	c.lows = append(c.lows, k.Low)
	if len(c.highs) > c.period {
		c.highs = c.highs[1:]
		c.lows = c.lows[1:]
	}
}

func (c *Channel) Ready() bool { return c.period > 0 && len(c.highs) >= c.period }

// Value returns the channel midpoint.
func (c *Channel) Value() float64 {
	if !c.Ready() {
		return 0
	}
	return (c.High() + c.Low()) / 2
}

func (c *Channel) High() float64 {
	if len(c.highs) == 0 {
		return 0
	}
	hh := c.highs[0]
	for _, h := range c.highs[1:] {
		if h > hh {
			hh = h
		}
	}
	return hh
}

func (c *Channel) Low() float64 {
	if len(c.lows) == 0 {
		return 0
	}
	ll := c.lows[0]
	for _, l := range c.lows[1:] {
		if l < ll {
			ll = l
		}
	}
	return ll
}
