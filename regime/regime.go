// Package regime labels the market from a feature snapshot and attaches a
// regime-dependent position cap to the consensus.
package regime

import (
	"fmt"
	"math"

	"github.com/rustyeddy/swarm/market"
)

type Label string

const (
	Panic   Label = "panic"
	Trend   Label = "trend"
	Quiet   Label = "quiet"
	Chop    Label = "chop"
	Unknown Label = "unknown"
)

// Labels lists every label Classify can return.
var Labels = []Label{Panic, Trend, Quiet, Chop}

func (l Label) String() string { return string(l) }

// ParseLabel accepts any label name including "unknown".
func ParseLabel(s string) (Label, error) {
	switch l := Label(s); l {
	case Panic, Trend, Quiet, Chop, Unknown:
		return l, nil
	}
	return Unknown, fmt.Errorf("unknown regime label %q", s)
}

type Thresholds struct {
	PanicVol        float64 `yaml:"panic_vol" json:"panic_vol" default:"0.05" validate:"gt=0"`
	PanicUrgency    float64 `yaml:"panic_urgency" json:"panic_urgency" default:"0.5" validate:"gte=0"`
	TrendImbalance  float64 `yaml:"trend_imbalance" json:"trend_imbalance" default:"0.15" validate:"gte=0"`
	TrendVolCeiling float64 `yaml:"trend_vol_ceiling" json:"trend_vol_ceiling" default:"0.04" validate:"gt=0"`
	QuietVol        float64 `yaml:"quiet_vol" json:"quiet_vol" default:"0.015" validate:"gt=0"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PanicVol:        0.05,
		PanicUrgency:    0.5,
		TrendImbalance:  0.15,
		TrendVolCeiling: 0.04,
		QuietVol:        0.015,
	}
}

// Classify applies the rules in priority order: panic, trend, quiet, chop.
// Missing features take their documented defaults.
func Classify(f market.Features, th Thresholds) Label {
	vol := f.Get(market.FeatureRealizedVol24h)
	urgency := f.Get(market.FeatureSocialUrgency)
	obi := f.Get(market.FeatureOrderbookImbalance)

	switch {
	case vol > th.PanicVol && urgency > th.PanicUrgency:
		return Panic
	case math.Abs(obi) > th.TrendImbalance && vol < th.TrendVolCeiling:
		return Trend
	case vol < th.QuietVol:
		return Quiet
	default:
		return Chop
	}
}
