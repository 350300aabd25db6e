package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swarm/broker"
	"github.com/rustyeddy/swarm/market"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation messages.
func (d Decision) Reason() string {
	if d.Allowed {
		return "ok"
	}
	s := ""
	for i, v := range d.Violations {
		if i > 0 {
			s += "; "
		}
		s += v.Msg
	}
	return s
}

// Validator rejects obviously invalid or oversized trades.
type Validator struct {
	MaxPositionFrac float64
}

func (v Validator) Validate(symbol string, fraction float64) Decision {
	d := Decision{Allowed: true}

	if math.IsNaN(fraction) || fraction <= 0 {
		d.add("NON_POSITIVE_SIZE", fmt.Sprintf("%s: position fraction %v <= 0", symbol, fraction))
		return d
	}
	if fraction > v.MaxPositionFrac {
		d.add("SIZE_TOO_LARGE",
			fmt.Sprintf("%s: position fraction %.2f%% exceeds max %.2f%%",
				symbol, 100*fraction, 100*v.MaxPositionFrac))
	}
	return d
}

// CorrelationGuard limits combined exposure to one base asset.
type CorrelationGuard struct {
	MaxCorrelatedExposure float64
}

// Check allows a sell unconditionally. A buy is allowed unless the open
// exposure to the same base asset plus fraction exceeds the limit.
func (g CorrelationGuard) Check(symbol string, side market.Side, fraction float64, open []broker.Position, equity float64) Decision {
	d := Decision{Allowed: true}
	if side == market.Sell {
		return d
	}
	if equity <= 0 {
		d.add("NO_EQUITY", fmt.Sprintf("equity %.2f <= 0", equity))
		return d
	}

	base, _ := market.SplitSymbol(symbol)
	exposure := 0.0
	for _, p := range open {
		if b, _ := market.SplitSymbol(p.Symbol); b == base {
			exposure += p.Notional() / equity
		}
	}
	if exposure+fraction > g.MaxCorrelatedExposure {
		d.add("CORRELATED_EXPOSURE",
			fmt.Sprintf("%s exposure %.2f%% + %.2f%% exceeds max %.2f%%",
				base, 100*exposure, 100*fraction, 100*g.MaxCorrelatedExposure))
	}
	return d
}
