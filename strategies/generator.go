package strategies

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/portfolio"
)

// TradeMeta describes where a proposed trade came from.
type TradeMeta struct {
	Reason    string  `json:"reason"`
	Timeframe string  `json:"timeframe"`
	Weight    float64 `json:"weight"`
}

// ProposedTrade is a strategy's sized intent before risk checks.
type ProposedTrade struct {
	Symbol           string      `json:"symbol"`
	Side             market.Side `json:"side"`
	PositionFraction float64     `json:"position_frac"`
	StrategyID       string      `json:"strategy_id"`
	Meta             TradeMeta   `json:"meta"`
}

// Generator runs allocated strategies over a candle window and turns each
// strategy's most recent signal into a proposed trade.
type Generator struct {
	log zerolog.Logger

	// Params holds per-strategy parameter overrides keyed by strategy id.
	Params map[string]map[string]any
}

func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{log: log, Params: map[string]map[string]any{}}
}

// Propose returns at most one trade per allocation with positive weight.
// Only the last signal of each strategy counts. A strategy that cannot be
// built or that panics is logged and skipped.
func (g *Generator) Propose(symbol, timeframe string, candles []market.Candle, allocs []portfolio.Allocation) []ProposedTrade {
	if len(allocs) == 0 {
		return nil
	}

	window := make([]market.Candle, len(candles))
	copy(window, candles)
	market.SortCandles(window)

	var out []ProposedTrade
	for _, a := range allocs {
		if a.Weight <= 0 {
			continue
		}

		strat, err := New(Config{ID: a.StrategyID, Pair: symbol, Timeframe: timeframe, Params: g.Params[a.StrategyID]})
		if err != nil {
			g.log.Error().Err(err).Str("strategy", a.StrategyID).Msg("instantiate strategy")
			continue
		}

		signals, err := generate(strat, window)
		if err != nil {
			g.log.Error().Err(err).Str("strategy", a.StrategyID).Msg("generate signals")
			continue
		}
		if len(signals) == 0 {
			continue
		}

		last := signals[len(signals)-1]
		var (
			side market.Side
			frac float64
		)
		switch last.Type {
		case EntryLong:
			side, frac = market.Buy, last.SizeFraction*a.Weight
		case ExitLong:
			side, frac = market.Sell, a.Weight
			if last.SizeFraction > 0 {
				frac = last.SizeFraction * a.Weight
			}
		default:
			continue
		}

		out = append(out, ProposedTrade{
			Symbol:           symbol,
			Side:             side,
			PositionFraction: frac,
			StrategyID:       a.StrategyID,
			Meta: TradeMeta{
				Reason:    last.Reason(),
				Timeframe: timeframe,
				Weight:    a.Weight,
			},
		})
	}

	g.log.Debug().Str("symbol", symbol).Int("proposed", len(out)).Msg("proposed trades")
	return out
}

func generate(s Strategy, candles []market.Candle) (signals []Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.ID(), r)
		}
	}()
	return s.GenerateSignals(candles), nil
}
