package strategies

import (
	"fmt"

	"github.com/rustyeddy/swarm/indicators"
	"github.com/rustyeddy/swarm/market"
)

const EMACrossV1 = "ema_cross_v1"

func init() {
	Register(EMACrossV1, NewEMACross)
}

type EMACrossParams struct {
	FastPeriod   int     `json:"fast_period"`
	SlowPeriod   int     `json:"slow_period"`
	SizeFraction float64 `json:"size_fraction"`
	MAType       string  `json:"ma_type"`
}

func DefaultEMACrossParams() EMACrossParams {
	return EMACrossParams{
		FastPeriod:   10,
		SlowPeriod:   30,
		SizeFraction: 0.02,
		MAType:       indicators.KindEMA,
	}
}

// EMACross trades a fast/slow moving average crossover long only. MAType
// picks the average, EMA unless set to "sma".
//   - Enters only on a bull cross (fast-slow goes from <=0 to >0)
//   - Exits on a bear cross (fast-slow goes from >=0 to <0)
type EMACross struct {
	id     string
	params EMACrossParams
}

func NewEMACross(cfg Config) (Strategy, error) {
	p := DefaultEMACrossParams()
	if err := decodeParams(cfg.Params, &p); err != nil {
		return nil, err
	}
	if p.FastPeriod <= 0 || p.SlowPeriod <= p.FastPeriod {
		return nil, fmt.Errorf("need 0 < fast_period < slow_period, got %d and %d", p.FastPeriod, p.SlowPeriod)
	}
	if p.SizeFraction <= 0 || p.SizeFraction > 1 {
		return nil, fmt.Errorf("size_fraction must be in (0,1], got %v", p.SizeFraction)
	}
	if _, err := indicators.NewMovingAverage(p.MAType, p.FastPeriod); err != nil {
		return nil, err
	}
	return &EMACross{id: cfg.ID, params: p}, nil
}

func (s *EMACross) ID() string             { return s.id }
func (s *EMACross) Params() map[string]any { return paramsMap(s.params) }

// averages builds the fast and slow lines. Params were checked in NewEMACross.
func (s *EMACross) averages() (fast, slow indicators.Indicator) {
	fast, _ = indicators.NewMovingAverage(s.params.MAType, s.params.FastPeriod)
	slow, _ = indicators.NewMovingAverage(s.params.MAType, s.params.SlowPeriod)
	return fast, slow
}

func (s *EMACross) GenerateSignals(candles []market.Candle) []Signal {
	fast, slow := s.averages()

	var (
		signals      []Signal
		lastDiff     float64
		haveLastDiff bool
		inLong       bool
	)

	for _, c := range candles {
		fast.Update(c)
		slow.Update(c)
		if !fast.Ready() || !slow.Ready() {
			continue
		}

		diff := fast.Value() - slow.Value()
		if !haveLastDiff {
			lastDiff = diff
			haveLastDiff = true
			continue
		}

		bullCross := diff > 0 && lastDiff <= 0
		bearCross := diff < 0 && lastDiff >= 0
		lastDiff = diff

		meta := map[string]any{"fast": fast.Value(), "slow": slow.Value()}
		switch {
		case bullCross && !inLong:
			meta["reason"] = "bull_cross"
			signals = append(signals, Signal{
				Time:         c.Time,
				Type:         EntryLong,
				Price:        c.Close,
				SizeFraction: s.params.SizeFraction,
				Meta:         meta,
			})
			inLong = true
		case bearCross && inLong:
			meta["reason"] = "bear_cross"
			signals = append(signals, Signal{
				Time:  c.Time,
				Type:  ExitLong,
				Price: c.Close,
				Meta:  meta,
			})
			inLong = false
		}
	}
	return signals
}
