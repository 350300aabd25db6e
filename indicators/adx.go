package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swarm/market"
)

// ADX is Wilder's Average Directional Index. It needs period candle deltas
// to seed the smoothed TR and DM sums, then period DX values to seed the
// index itself, so Warmup reports 2*period.
type ADX struct {
	period int

	prev    market.Candle
	hasPrev bool
	deltas  int
	ready   bool

	sumTR, sumPlusDM, sumMinusDM float64

	adx, plusDI, minusDI, lastDX float64
	dxSum                        float64
	dxCount                      int
}

func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string     { return fmt.Sprintf("ADX(%d)", a.period) }
func (a *ADX) Warmup() int      { return 2 * a.period }
func (a *ADX) Ready() bool      { return a.ready }
func (a *ADX) Value() float64   { return a.adx }
func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) DX() float64      { return a.lastDX }

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Update(c market.Candle) {
	if a.period <= 0 {
		return
	}
	if !a.hasPrev {
		a.prev, a.hasPrev = c, true
		return
	}

	tr := TrueRange(c, a.prev)
	up := c.High - a.prev.High
	down := a.prev.Low - c.Low
	a.prev = c

	var plusDM, minusDM float64
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}

	a.deltas++
	n := float64(a.period)
	if a.deltas <= a.period {
		// the first period deltas are plain sums
		a.sumTR += tr
		a.sumPlusDM += plusDM
		a.sumMinusDM += minusDM
		if a.deltas < a.period {
			return
		}
	} else {
		a.sumTR = a.sumTR - a.sumTR/n + tr
		a.sumPlusDM = a.sumPlusDM - a.sumPlusDM/n + plusDM
		a.sumMinusDM = a.sumMinusDM - a.sumMinusDM/n + minusDM
	}

	a.plusDI, a.minusDI = directional(a.sumPlusDM, a.sumMinusDM, a.sumTR)
	a.lastDX = dx(a.plusDI, a.minusDI)

	if a.ready {
		a.adx = (a.adx*(n-1) + a.lastDX) / n
		return
	}
	a.dxSum += a.lastDX
	a.dxCount++
	if a.dxCount >= a.period {
		a.adx = a.dxSum / n
		a.ready = true
	}
}

func directional(plusDM, minusDM, tr float64) (float64, float64) {
	if tr <= 0 {
		return 0, 0
	}
	return 100 * plusDM / tr, 100 * minusDM / tr
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / den
}
