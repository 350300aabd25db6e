// Package state holds the live loop's shared, mutable view of the market:
// latest features per asset, the current regime per symbol, trade
// counters, the pause flag and a bounded consensus history.
package state

import (
	"sync"
	"time"

	"github.com/rustyeddy/swarm/consensus"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/regime"
)

// DefaultHistory bounds the consensus history kept per symbol.
const DefaultHistory = 100

type Counters struct {
	Executed int
	Rejected int
	Wins     int
	Losses   int
	PnL      float64
}

// ConsensusPoint is one arbitration outcome with its classified regime.
type ConsensusPoint struct {
	Time   time.Time
	Result consensus.Result
	Regime regime.Label
}

// Regime is the last classification for a symbol with the snapshot it
// was derived from.
type Regime struct {
	Label     regime.Label
	UpdatedAt time.Time
	Features  market.Features
}

type State struct {
	mu        sync.RWMutex
	now       func() time.Time
	features  map[string]market.Features
	regimes   map[string]Regime
	counters  Counters
	paused    bool
	reason    string
	history   map[string][]ConsensusPoint
	maxPoints int
}

// New returns an empty State keeping at most history consensus points per
// symbol. A history <= 0 uses DefaultHistory.
func New(history int) *State {
	if history <= 0 {
		history = DefaultHistory
	}
	return &State{
		now:       time.Now,
		features:  map[string]market.Features{},
		regimes:   map[string]Regime{},
		history:   map[string][]ConsensusPoint{},
		maxPoints: history,
	}
}

func (s *State) SetFeatures(f market.Features) {
	f = f.Clone()
	s.mu.Lock()
	s.features[f.Asset] = f
	s.mu.Unlock()
}

// Features returns a copy of the latest snapshot for asset.
func (s *State) Features(asset string) (market.Features, bool) {
	s.mu.RLock()
	f, ok := s.features[asset]
	s.mu.RUnlock()
	if !ok {
		return market.Features{}, false
	}
	return f.Clone(), true
}

// SetRegime records the label classified from f and stamps it with the
// current time.
func (s *State) SetRegime(symbol string, l regime.Label, f market.Features) {
	r := Regime{Label: l, Features: f.Clone()}
	s.mu.Lock()
	r.UpdatedAt = s.now()
	s.regimes[symbol] = r
	s.mu.Unlock()
}

// Regime returns the last regime for symbol. A symbol never classified
// reports regime.Unknown with a zero UpdatedAt.
func (s *State) Regime(symbol string) Regime {
	s.mu.RLock()
	r, ok := s.regimes[symbol]
	s.mu.RUnlock()
	if !ok {
		return Regime{Label: regime.Unknown}
	}
	r.Features = r.Features.Clone()
	return r
}

// RecordTrade counts an executed trade and its realized pnl.
func (s *State) RecordTrade(pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Executed++
	s.counters.PnL += pnl
	switch {
	case pnl > 0:
		s.counters.Wins++
	case pnl < 0:
		s.counters.Losses++
	}
}

func (s *State) RecordRejected() {
	s.mu.Lock()
	s.counters.Rejected++
	s.mu.Unlock()
}

func (s *State) Counters() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters
}

func (s *State) Pause(reason string) {
	s.mu.Lock()
	s.paused = true
	s.reason = reason
	s.mu.Unlock()
}

func (s *State) Resume() {
	s.mu.Lock()
	s.paused = false
	s.reason = ""
	s.mu.Unlock()
}

// Paused reports the pause flag and the reason it was set.
func (s *State) Paused() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused, s.reason
}

// AppendConsensus records p for symbol, dropping the oldest point once the
// history is full.
func (s *State) AppendConsensus(symbol string, p ConsensusPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.history[symbol], p)
	if over := len(h) - s.maxPoints; over > 0 {
		h = append([]ConsensusPoint(nil), h[over:]...)
	}
	s.history[symbol] = h
}

// History returns a copy of symbol's consensus history, oldest first.
func (s *State) History(symbol string) []ConsensusPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ConsensusPoint(nil), s.history[symbol]...)
}
