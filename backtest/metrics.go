package backtest

import "math"

// TradingDaysPerYear annualizes the per-bar Sharpe ratio.
const TradingDaysPerYear = 252

const epsilon = 1e-9

type Metrics struct {
	TotalReturn  float64 `json:"total_return"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Sharpe       float64 `json:"sharpe"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	NumTrades    int     `json:"num_trades"`

	// AvgWin and AvgLoss are the mean winning and losing trade returns.
	// AvgLoss is reported as a positive magnitude.
	AvgWin  float64 `json:"avg_win"`
	AvgLoss float64 `json:"avg_loss"`
}

// NoLossEdge reports a profit factor of 0 that comes from having trades but
// no losing ones, rather than from having no edge.
func (m Metrics) NoLossEdge() bool {
	return m.ProfitFactor == 0 && m.NumTrades > 0 && m.AvgWin > 0 && m.AvgLoss == 0
}

// ComputeMetrics derives run statistics from an equity curve and the list of
// per-trade returns. A trade with return > 0 is a win; anything else is a
// loss. ProfitFactor is 0 when there is no gross loss.
func ComputeMetrics(equity []float64, tradeReturns []float64) Metrics {
	var m Metrics

	if len(equity) > 0 && equity[0] != 0 {
		m.TotalReturn = equity[len(equity)-1]/equity[0] - 1
	}
	m.Sharpe = sharpe(pctChange(equity))
	m.MaxDrawdown = maxDrawdown(equity)

	var (
		wins, losses           int
		grossProfit, grossLoss float64
	)
	for _, r := range tradeReturns {
		if r > 0 {
			wins++
			grossProfit += r
		} else {
			losses++
			grossLoss -= r
		}
	}

	m.NumTrades = len(tradeReturns)
	if m.NumTrades > 0 {
		m.WinRate = float64(wins) / float64(m.NumTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}
	return m
}

// pctChange returns the bar-over-bar returns, skipping bars whose previous
// value is zero.
func pctChange(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		if xs[i-1] == 0 {
			continue
		}
		out = append(out, xs[i]/xs[i-1]-1)
	}
	return out
}

// sharpe is sqrt(252) * mean / (sample std + epsilon), or 0 with fewer
// than two returns.
func sharpe(returns []float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	ss := 0.0
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n-1))
	return math.Sqrt(TradingDaysPerYear) * mean / (std + epsilon)
}

// maxDrawdown is the minimum of equity/running-max - 1; never positive.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}
