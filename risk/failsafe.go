package risk

import (
	"sync"
	"time"
)

// Failsafe pauses trading once the day's realized loss breaches a limit.
// The tally resets when the UTC day changes.
type Failsafe struct {
	MaxDailyLossPct float64
	Capital         float64

	mu     sync.Mutex
	day    time.Time
	pnl    float64
	paused bool
	now    func() time.Time
}

func NewFailsafe(maxDailyLossPct, capital float64) *Failsafe {
	return &Failsafe{
		MaxDailyLossPct: maxDailyLossPct,
		Capital:         capital,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (f *Failsafe) rollover() {
	today := f.now().Truncate(24 * time.Hour)
	if !today.Equal(f.day) {
		f.day = today
		f.pnl = 0
		f.paused = false
	}
}

// Record adds realized pnl and reports whether trading is now paused.
func (f *Failsafe) Record(pnl float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rollover()
	f.pnl += pnl
	if f.pnl < -f.MaxDailyLossPct*f.Capital {
		f.paused = true
	}
	return f.paused
}

func (f *Failsafe) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollover()
	return f.paused
}

// DailyPnL returns the realized pnl tallied for the current day.
func (f *Failsafe) DailyPnL() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollover()
	return f.pnl
}
