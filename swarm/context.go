// Package swarm runs the live decision loop: for each trading pair it
// turns advisor opinions into sized, risk-checked orders.
package swarm

import (
	"context"
	"fmt"

	"github.com/rustyeddy/swarm/config"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/market"
)

// PairContext is the per-pair state of the loop. It is only touched by the
// loop goroutine.
type PairContext struct {
	Symbol    string
	Timeframe string
	Enabled   bool
	Base      string
	Quote     string

	// Approved holds the strategy ids allowed to trade. Nil until the first
	// refresh.
	Approved []string
}

func NewPairContext(symbol, timeframe string, enabled bool) *PairContext {
	base, quote := market.SplitSymbol(symbol)
	return &PairContext{
		Symbol:    symbol,
		Timeframe: timeframe,
		Enabled:   enabled,
		Base:      base,
		Quote:     quote,
	}
}

// BuildContexts returns one context per configured pair, in config order.
func BuildContexts(pairs []config.PairConfig) []*PairContext {
	out := make([]*PairContext, 0, len(pairs))
	for _, p := range pairs {
		tf := p.Timeframe
		if tf == "" {
			tf = lab.DefaultTimeframe
		}
		out = append(out, NewPairContext(p.Symbol, tf, p.IsEnabled()))
	}
	return out
}

// RefreshApproved reloads the approved strategy set from store. On error the
// previous set is kept.
func (pc *PairContext) RefreshApproved(ctx context.Context, store lab.Store, allowed []lab.Status) error {
	ids, err := lab.ApprovedFor(ctx, store, pc.Symbol, pc.Timeframe, allowed)
	if err != nil {
		return fmt.Errorf("refresh %s %s: %w", pc.Symbol, pc.Timeframe, err)
	}
	pc.Approved = ids
	return nil
}

func (pc *PairContext) String() string {
	return pc.Symbol + " " + pc.Timeframe
}
