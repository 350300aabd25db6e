package risk

import (
	"context"
	"math"
)

// Stats is the historical performance used for Kelly sizing. AvgWin and
// AvgLoss are returns as fractions of capital.
type Stats struct {
	WinRate float64
	AvgWin  float64
	AvgLoss float64
}

// DefaultStats applies when a context has no history.
var DefaultStats = Stats{WinRate: 0.55, AvgWin: 0.03, AvgLoss: 0.02}

// StatsProvider looks up historical performance for a strategy or pair key.
// Implementations return DefaultStats when no history exists.
type StatsProvider interface {
	Stats(ctx context.Context, key string) (Stats, error)
}

// StaticStats always returns the same stats.
type StaticStats Stats

func (s StaticStats) Stats(context.Context, string) (Stats, error) {
	return Stats(s), nil
}

// KellySizer converts confidence and history into a position fraction.
type KellySizer struct {
	KellyFraction float64
	MaxPosition   float64
}

func DefaultSizer() KellySizer {
	return KellySizer{KellyFraction: 0.25, MaxPosition: 0.05}
}

// Fallback is the conservative size used when the Kelly inputs are unusable.
func (k KellySizer) Fallback() float64 {
	return k.MaxPosition / 2
}

// Size returns clamp(f * KellyFraction * confidence, 0, MaxPosition) where
// f is the Kelly fraction for s. Degenerate or non-finite inputs yield
// Fallback. Size never panics.
func (k KellySizer) Size(confidence float64, s Stats) (size float64) {
	defer func() {
		if r := recover(); r != nil {
			size = k.Fallback()
		}
	}()

	if !finite(confidence, s.WinRate, s.AvgWin, s.AvgLoss, k.KellyFraction, k.MaxPosition) {
		return k.Fallback()
	}
	if s.AvgLoss == 0 {
		return k.Fallback()
	}
	b := s.AvgWin / math.Abs(s.AvgLoss)
	if b == 0 {
		return k.Fallback()
	}
	f := KellyFraction(s.WinRate, b)
	size = clamp(f*k.KellyFraction*confidence, 0, k.MaxPosition)
	if !finite(size) {
		return k.Fallback()
	}
	return size
}

// KellyFraction is (p*b - (1-p)) / b for win probability p and payoff ratio b.
func KellyFraction(p, b float64) float64 {
	return (p*b - (1 - p)) / b
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
