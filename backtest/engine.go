package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/strategies"
)

var ErrNoCandles = errors.New("no candles")

// DefaultInitialCapital is used when an Engine has no capital configured.
const DefaultInitialCapital = 10_000.0

// TradeRecord is one completed round trip.
type TradeRecord struct {
	StrategyID string
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	// ReturnPct is PnL over the run's initial capital.
	ReturnPct float64
	// Forced marks a position liquidated at the final bar.
	Forced bool
}

type EquityPoint struct {
	Time   time.Time
	Equity float64
}

type Result struct {
	StrategyID     string
	InitialCapital float64
	Start          time.Time
	End            time.Time
	Equity         []EquityPoint
	Trades         []TradeRecord
	Metrics        Metrics
}

// EquityValues returns the equity curve without timestamps.
func (r Result) EquityValues() []float64 {
	out := make([]float64, len(r.Equity))
	for i, p := range r.Equity {
		out[i] = p.Equity
	}
	return out
}

// TradeReturns returns each trade's ReturnPct.
func (r Result) TradeReturns() []float64 {
	out := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		out[i] = t.ReturnPct
	}
	return out
}

// Engine replays a strategy's signals over a candle series.
//
// This engine is intentionally simple:
//   - long only, one position at a time
//   - entries and exits fill at the bar close
//   - an open position is liquidated at the last close
type Engine struct {
	InitialCapital float64
	Log            zerolog.Logger
}

func NewEngine(initialCapital float64, log zerolog.Logger) *Engine {
	return &Engine{InitialCapital: initialCapital, Log: log}
}

type position struct {
	open       bool
	qty        float64
	entryPrice float64
	entryTime  time.Time
}

func (e *Engine) Run(strat strategies.Strategy, candles []market.Candle) (Result, error) {
	if strat == nil {
		return Result{}, fmt.Errorf("backtest: nil strategy")
	}
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("backtest %s: %w", strat.ID(), ErrNoCandles)
	}

	initial := e.InitialCapital
	if initial <= 0 {
		initial = DefaultInitialCapital
	}

	bars := make([]market.Candle, len(candles))
	copy(bars, candles)
	market.SortCandles(bars)

	signals := strat.GenerateSignals(bars)
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Time.Before(signals[j].Time) })

	res := Result{
		StrategyID:     strat.ID(),
		InitialCapital: initial,
		Start:          bars[0].Time,
		End:            bars[len(bars)-1].Time,
		Equity:         make([]EquityPoint, len(bars)),
	}

	capital := initial
	var pos position
	next := 0

	closeAt := func(t time.Time, price float64, forced bool) {
		pnl := pos.qty * (price - pos.entryPrice)
		capital += pnl
		res.Trades = append(res.Trades, TradeRecord{
			StrategyID: strat.ID(),
			EntryTime:  pos.entryTime,
			EntryPrice: pos.entryPrice,
			ExitTime:   t,
			ExitPrice:  price,
			Quantity:   pos.qty,
			PnL:        pnl,
			ReturnPct:  pnl / initial,
			Forced:     forced,
		})
		pos = position{}
	}

	for i, bar := range bars {
		price := bar.Close

		// Consume every pending signal stamped at or before this bar.
		for next < len(signals) && !signals[next].Time.After(bar.Time) {
			sig := signals[next]
			next++

			switch {
			case sig.Type == strategies.EntryLong && !pos.open:
				if sig.SizeFraction <= 0 {
					continue
				}
				if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
					e.Log.Warn().
						Time("time", bar.Time).
						Float64("price", price).
						Msg("entry skipped: unusable price")
					continue
				}
				pos = position{
					open:       true,
					qty:        capital * sig.SizeFraction / price,
					entryPrice: price,
					entryTime:  sig.Time,
				}
			case sig.Type == strategies.ExitLong && pos.open:
				closeAt(sig.Time, price, false)
			}
		}

		equity := capital
		if pos.open {
			equity += pos.qty * (price - pos.entryPrice)
		}
		res.Equity[i] = EquityPoint{Time: bar.Time, Equity: equity}
	}
	res.Equity[0].Equity = initial

	if pos.open && pos.qty > 0 {
		last := bars[len(bars)-1]
		closeAt(last.Time, last.Close, true)
		res.Equity[len(res.Equity)-1].Equity = capital
	}

	res.Metrics = ComputeMetrics(res.EquityValues(), res.TradeReturns())

	e.Log.Info().
		Str("strategy", strat.ID()).
		Float64("total_return", res.Metrics.TotalReturn).
		Float64("max_drawdown", res.Metrics.MaxDrawdown).
		Float64("sharpe", res.Metrics.Sharpe).
		Float64("win_rate", res.Metrics.WinRate).
		Float64("profit_factor", res.Metrics.ProfitFactor).
		Int("trades", res.Metrics.NumTrades).
		Msg("backtest done")

	return res, nil
}
