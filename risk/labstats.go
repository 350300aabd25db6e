package risk

import (
	"context"
	"fmt"

	"github.com/rustyeddy/swarm/lab"
)

// SummarySource is the part of the lab store LabStats reads.
type SummarySource interface {
	StrategiesSummary(ctx context.Context) ([]lab.StrategySummary, error)
}

// LabStats derives sizing stats for a pair from the latest backtests of its
// strategies, weighting each by its trade count. Keys are pair symbols.
type LabStats struct {
	Source   SummarySource
	Fallback Stats
}

func NewLabStats(src SummarySource) *LabStats {
	return &LabStats{Source: src, Fallback: DefaultStats}
}

func (l *LabStats) Stats(ctx context.Context, key string) (Stats, error) {
	sums, err := l.Source.StrategiesSummary(ctx)
	if err != nil {
		return l.Fallback, fmt.Errorf("lab stats for %s: %w", key, err)
	}

	var out Stats
	total := 0.0
	for _, s := range sums {
		if s.Pair != key || s.Latest == nil || s.Latest.NumTrades == 0 {
			continue
		}
		m := s.Latest
		// A strategy with no losing trades has no usable payoff ratio.
		if m.AvgLoss == 0 {
			continue
		}
		n := float64(m.NumTrades)
		out.WinRate += m.WinRate * n
		out.AvgWin += m.AvgWin * n
		out.AvgLoss += m.AvgLoss * n
		total += n
	}
	if total == 0 {
		return l.Fallback, nil
	}
	out.WinRate /= total
	out.AvgWin /= total
	out.AvgLoss /= total
	return out, nil
}
