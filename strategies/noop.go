package strategies

import "github.com/rustyeddy/swarm/market"

const Noop = "noop"

func init() {
	Register(Noop, func(cfg Config) (Strategy, error) { return NoopStrategy{id: cfg.ID}, nil })
}

// NoopStrategy never signals.
type NoopStrategy struct{ id string }

func (s NoopStrategy) ID() string                             { return s.id }
func (NoopStrategy) Params() map[string]any                   { return map[string]any{} }
func (NoopStrategy) GenerateSignals([]market.Candle) []Signal { return nil }
