package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swarm/indicators"
	"github.com/rustyeddy/swarm/market"
)

const EMACrossADXV1 = "ema_cross_adx_v1"

func init() {
	Register(EMACrossADXV1, NewEMACrossADX)
}

type EMACrossADXParams struct {
	FastPeriod   int     `json:"fast_period"`
	SlowPeriod   int     `json:"slow_period"`
	ADXPeriod    int     `json:"adx_period"`
	ADXThreshold float64 `json:"adx_threshold"`
	// RequireDI confirms an entry with +DI > -DI.
	RequireDI bool `json:"require_di"`
	// MinSpread ignores crosses whose EMA spread is below this many price
	// units. Zero disables the filter.
	MinSpread    float64 `json:"min_spread"`
	SizeFraction float64 `json:"size_fraction"`
}

func DefaultEMACrossADXParams() EMACrossADXParams {
	return EMACrossADXParams{
		FastPeriod:   10,
		SlowPeriod:   30,
		ADXPeriod:    14,
		ADXThreshold: 20,
		RequireDI:    true,
		SizeFraction: 0.02,
	}
}

// EMACrossADX is EMACross gated by trend strength: a bull cross enters only
// once ADX is ready and at or above the threshold. Exits are never gated.
type EMACrossADX struct {
	id     string
	params EMACrossADXParams
}

func NewEMACrossADX(cfg Config) (Strategy, error) {
	p := DefaultEMACrossADXParams()
	if err := decodeParams(cfg.Params, &p); err != nil {
		return nil, err
	}
	if p.FastPeriod <= 0 || p.SlowPeriod <= p.FastPeriod {
		return nil, fmt.Errorf("need 0 < fast_period < slow_period, got %d and %d", p.FastPeriod, p.SlowPeriod)
	}
	if p.ADXPeriod <= 0 {
		return nil, fmt.Errorf("adx_period must be > 0, got %d", p.ADXPeriod)
	}
	if p.ADXThreshold < 0 || p.MinSpread < 0 {
		return nil, fmt.Errorf("adx_threshold and min_spread must be >= 0")
	}
	if p.SizeFraction <= 0 || p.SizeFraction > 1 {
		return nil, fmt.Errorf("size_fraction must be in (0,1], got %v", p.SizeFraction)
	}
	return &EMACrossADX{id: cfg.ID, params: p}, nil
}

func (s *EMACrossADX) ID() string             { return s.id }
func (s *EMACrossADX) Params() map[string]any { return paramsMap(s.params) }

func (s *EMACrossADX) GenerateSignals(candles []market.Candle) []Signal {
	fast := indicators.NewEMA(s.params.FastPeriod)
	slow := indicators.NewEMA(s.params.SlowPeriod)
	adx := indicators.NewADX(s.params.ADXPeriod)

	var (
		signals []Signal
		prevRel int
		inLong  bool
	)

	for _, c := range candles {
		fast.Update(c)
		slow.Update(c)
		adx.Update(c)
		if !fast.Ready() || !slow.Ready() {
			continue
		}

		diff := fast.Value() - slow.Value()
		if s.params.MinSpread > 0 && math.Abs(diff) < s.params.MinSpread {
			continue
		}

		rel := 0
		switch {
		case diff > 0:
			rel = 1
		case diff < 0:
			rel = -1
		}
		if prevRel == 0 || rel == 0 {
			// first usable relationship is only a baseline
			if rel != 0 {
				prevRel = rel
			}
			continue
		}

		crossUp := prevRel < 0 && rel > 0
		crossDown := prevRel > 0 && rel < 0
		prevRel = rel

		meta := map[string]any{
			"fast":     fast.Value(),
			"slow":     slow.Value(),
			"adx":      adx.Value(),
			"plus_di":  adx.PlusDI(),
			"minus_di": adx.MinusDI(),
		}
		switch {
		case crossUp && !inLong:
			if !adx.Ready() || adx.Value() < s.params.ADXThreshold {
				continue
			}
			if s.params.RequireDI && adx.PlusDI() <= adx.MinusDI() {
				continue
			}
			meta["reason"] = "bull_cross_adx"
			signals = append(signals, Signal{
				Time:         c.Time,
				Type:         EntryLong,
				Price:        c.Close,
				SizeFraction: s.params.SizeFraction,
				Meta:         meta,
			})
			inLong = true
		case crossDown && inLong:
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
