package lab

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swarm/backtest"
)

// Thresholds gate a strategy's latest backtest.
type Thresholds struct {
	MinBacktests    int     `yaml:"min_backtests" json:"min_backtests" default:"1" validate:"gte=0"`
	MinTrades       int     `yaml:"min_trades" json:"min_trades" default:"30" validate:"gte=0"`
	MinSharpe       float64 `yaml:"min_sharpe" json:"min_sharpe" default:"1.0"`
	MaxDrawdown     float64 `yaml:"max_drawdown" json:"max_drawdown" default:"0.3" validate:"gte=0,lte=1"`
	MinTotalReturn  float64 `yaml:"min_total_return" json:"min_total_return" default:"0.1"`
	MinProfitFactor float64 `yaml:"min_profit_factor" json:"min_profit_factor" default:"1.3" validate:"gte=0"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinBacktests:    1,
		MinTrades:       30,
		MinSharpe:       1.0,
		MaxDrawdown:     0.3,
		MinTotalReturn:  0.1,
		MinProfitFactor: 1.3,
	}
}

// rejectProfitFactor is the profit factor below which a run has no edge.
const rejectProfitFactor = 1.0

// Evaluate maps a strategy's backtest history to a status. Data sufficiency
// is checked before quality, and approval before rejection.
func Evaluate(numBacktests int, latest *backtest.Metrics, th Thresholds) Status {
	st, _ := evaluate(numBacktests, latest, th)
	return st
}

func evaluate(numBacktests int, latest *backtest.Metrics, th Thresholds) (Status, string) {
	if numBacktests < th.MinBacktests || latest == nil {
		return InsufficientData, fmt.Sprintf("backtests %d/%d", numBacktests, th.MinBacktests)
	}
	m := *latest
	if m.NumTrades < th.MinTrades {
		return InsufficientData, fmt.Sprintf("trades %d/%d", m.NumTrades, th.MinTrades)
	}

	// A run with winners and no losers reports profit factor 0. Read as
	// 0 it would fall under rejectProfitFactor and be Rejected; it is
	// scored as unbounded instead, so the other thresholds decide.
	pf := m.ProfitFactor
	if m.NoLossEdge() {
		pf = math.Inf(1)
	}

	summary := fmt.Sprintf("ret=%.2f%% dd=%.2f%% sharpe=%.2f pf=%.2f trades=%d",
		100*m.TotalReturn, 100*m.MaxDrawdown, m.Sharpe, pf, m.NumTrades)

	if m.TotalReturn >= th.MinTotalReturn &&
		m.MaxDrawdown >= -th.MaxDrawdown &&
		m.Sharpe >= th.MinSharpe &&
		pf >= th.MinProfitFactor {
		return Approved, summary
	}
	if m.TotalReturn < 0 || pf < rejectProfitFactor {
		return Rejected, summary
	}
	return Experimental, summary
}

// Transition is one strategy's status change from an evaluation pass.
type Transition struct {
	StrategyID string
	From       Status
	To         Status
	Reason     string
}

func (t Transition) Changed() bool { return t.From != t.To }

// Gate evaluates every stored strategy and persists the result.
type Gate struct {
	Store      Store
	Thresholds Thresholds
	log        zerolog.Logger
}

func NewGate(store Store, th Thresholds, log zerolog.Logger) *Gate {
	return &Gate{Store: store, Thresholds: th, log: log}
}

// EvaluateAll returns one Transition per strategy. Re-running with no new
// backtests yields the same statuses.
func (g *Gate) EvaluateAll(ctx context.Context) ([]Transition, error) {
	sums, err := g.Store.StrategiesSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("lab summaries: %w", err)
	}
	g.log.Info().Int("strategies", len(sums)).Msg("evaluating strategies against lab thresholds")

	out := make([]Transition, 0, len(sums))
	for _, s := range sums {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		to, reason := evaluate(s.NumBacktests, s.Latest, g.Thresholds)
		if err := g.Store.SetStrategyStatus(ctx, s.ID, to); err != nil {
			return out, err
		}

		ev := g.log.Info()
		if to == Rejected {
			ev = g.log.Warn()
		}
		ev.Str("strategy", s.ID).
			Str("from", string(s.Status)).
			Str("to", string(to)).
			Str("reason", reason).
			Msg("lab status")

		out = append(out, Transition{StrategyID: s.ID, From: s.Status, To: to, Reason: reason})
	}
	return out, nil
}
