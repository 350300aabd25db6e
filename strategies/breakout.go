package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swarm/indicators"
	"github.com/rustyeddy/swarm/market"
)

const BTCBreakoutV1 = "btc_breakout_v1"

func init() {
	Register(BTCBreakoutV1, NewBreakout)
}

type BreakoutParams struct {
	Lookback     int     `json:"lookback"`
	ATRPeriod    int     `json:"atr_period"`
	ATRMult      float64 `json:"atr_mult"`
	RiskFraction float64 `json:"risk_fraction"`
	AllowShort   bool    `json:"allow_short"`
}

func DefaultBreakoutParams() BreakoutParams {
	return BreakoutParams{
		Lookback:     40,
		ATRPeriod:    14,
		ATRMult:      1.5,
		RiskFraction: 0.02,
	}
}

// Breakout goes long when the close breaks above the highest high of the
// previous Lookback bars and exits when it falls below the channel midpoint
// or the channel low. With AllowShort it mirrors the rule downward: a close
// under the lowest low enters short and a close back above the midpoint or
// the channel high covers. Bars whose channel width is under ATRMult times
// the ATR are skipped.
type Breakout struct {
	id     string
	params BreakoutParams
}

func NewBreakout(cfg Config) (Strategy, error) {
	p := DefaultBreakoutParams()
	if err := decodeParams(cfg.Params, &p); err != nil {
		return nil, err
	}
	if p.Lookback <= 0 || p.ATRPeriod <= 0 {
		return nil, fmt.Errorf("lookback and atr_period must be positive, got %d and %d", p.Lookback, p.ATRPeriod)
	}
	if p.RiskFraction <= 0 || p.RiskFraction > 1 {
		return nil, fmt.Errorf("risk_fraction must be in (0,1], got %v", p.RiskFraction)
	}
	return &Breakout{id: cfg.ID, params: p}, nil
}

func (b *Breakout) ID() string             { return b.id }
func (b *Breakout) Params() map[string]any { return paramsMap(b.params) }

func (b *Breakout) GenerateSignals(candles []market.Candle) []Signal {
	p := b.params
	channel := indicators.NewChannel(p.Lookback)
	atr := indicators.NewATR(p.ATRPeriod)

	var (
		signals []Signal
		inLong  bool
		inShort bool
	)

	for _, c := range candles {
		atr.Update(c)

		// The channel covers the previous Lookback bars, never the current one.
		ready := channel.Ready() && atr.Ready()
		hh, ll, mid := channel.High(), channel.Low(), channel.Value()
		channel.Update(c)
		if !ready {
			continue
		}

		ratio := (hh - ll) / (atr.Value() + 1e-9)
		if math.IsNaN(ratio) || ratio < p.ATRMult {
			continue
		}

		meta := map[string]any{
			"hh":              hh,
			"ll":              ll,
			"mid":             mid,
			"range_atr_ratio": ratio,
		}
		switch {
		case !inLong && !inShort && c.Close > hh:
			meta["reason"] = "breakout_up"
			signals = append(signals, Signal{
				Time:         c.Time,
				Type:         EntryLong,
				Price:        c.Close,
				SizeFraction: p.RiskFraction,
				Meta:         meta,
			})
			inLong = true
		case inLong && (c.Close < mid || c.Close < ll):
			meta["reason"] = "exit_breakdown"
			signals = append(signals, Signal{
				Time:  c.Time,
				Type:  ExitLong,
				Price: c.Close,
				Meta:  meta,
			})
			inLong = false
		case p.AllowShort && !inLong && !inShort && c.Close < ll:
			meta["reason"] = "breakout_down"
			signals = append(signals, Signal{
				Time:         c.Time,
				Type:         EntryShort,
				Price:        c.Close,
				SizeFraction: p.RiskFraction,
				Meta:         meta,
			})
			inShort = true
		case inShort && (c.Close > mid || c.Close > hh):
			meta["reason"] = "exit_breakup"
			signals = append(signals, Signal{
				Time:  c.Time,
				Type:  ExitShort,
				Price: c.Close,
				Meta:  meta,
			})
			inShort = false
		}
	}
	return signals
}
