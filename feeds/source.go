// Package feeds supplies the live loop with feature snapshots and recent
// candles.
package feeds

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/swarm/market"
)

var ErrNoSnapshot = errors.New("no feature snapshot")

// Source returns the latest feature snapshot for an asset.
type Source interface {
	Snapshot(ctx context.Context, asset string) (market.Features, error)
}

// Static serves fixed values per asset. It backs config-driven runs and
// tests.
type Static struct {
	mu     sync.RWMutex
	values map[string]map[string]float64
	now    func() time.Time
}

func NewStatic(values map[string]map[string]float64) *Static {
	s := &Static{values: map[string]map[string]float64{}, now: time.Now}
	for asset, vals := range values {
		s.Set(asset, vals)
	}
	return s
}

// Set replaces asset's values.
func (s *Static) Set(asset string, vals map[string]float64) {
	cp := make(map[string]float64, len(vals))
	for k, v := range vals {
		cp[k] = v
	}
	s.mu.Lock()
	s.values[asset] = cp
	s.mu.Unlock()
}

func (s *Static) Snapshot(_ context.Context, asset string) (market.Features, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals, ok := s.values[asset]
	if !ok {
		return market.Features{}, ErrNoSnapshot
	}
	f := market.NewFeatures(asset, s.now().UTC())
	for k, v := range vals {
		f.Values[k] = v
	}
	return f, nil
}
