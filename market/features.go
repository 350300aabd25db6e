package market

import (
	"sort"
	"time"
)

// Feature names shared by advisors and the regime classifier.
const (
	FeaturePrice              = "price"
	FeatureRealizedVol1h      = "realized_vol_1h"
	FeatureRealizedVol24h     = "realized_vol_24h"
	FeatureOrderbookImbalance = "orderbook_imbalance"
	FeatureSpreadBps          = "orderbook_spread_bps"
	FeatureDepthUSD           = "orderbook_depth_usd"
	FeatureFundingRate        = "funding_rate"
	FeatureFundingImbalance   = "funding_imbalance"
	FeatureWhaleSignal        = "onchain_whale_signal"
	FeatureStablecoinFlow     = "stablecoin_net_flow"
	FeatureOptionsFlow        = "options_flow_signal"
	FeatureSocialSignal       = "social_signal"
	FeatureSocialUrgency      = "social_urgency"
)

// featureDefaults are used when a snapshot does not carry a value.
var featureDefaults = map[string]float64{
	FeatureRealizedVol1h:  0.01,
	FeatureRealizedVol24h: 0.02,
	FeatureSpreadBps:      2.0,
	FeatureDepthUSD:       1_000_000,
}

// Features is a flat snapshot of named numeric market and alt-data values
// for one asset.
type Features struct {
	Asset  string
	Time   time.Time
	Values map[string]float64
}

// NewFeatures returns an empty snapshot for asset stamped at t.
func NewFeatures(asset string, t time.Time) Features {
	return Features{Asset: asset, Time: t, Values: map[string]float64{}}
}

// Get returns the named value, the documented default, or 0.
func (f Features) Get(name string) float64 {
	if v, ok := f.Values[name]; ok {
		return v
	}
	return featureDefaults[name]
}

// Has reports whether the snapshot carries name explicitly.
func (f Features) Has(name string) bool {
	_, ok := f.Values[name]
	return ok
}

// Empty reports whether the snapshot has no values.
func (f Features) Empty() bool { return len(f.Values) == 0 }

// Clone returns a deep copy so readers never share the map with writers.
func (f Features) Clone() Features {
	out := Features{Asset: f.Asset, Time: f.Time, Values: make(map[string]float64, len(f.Values))}
	for k, v := range f.Values {
		out.Values[k] = v
	}
	return out
}

// Names returns the value names in sorted order.
func (f Features) Names() []string {
	names := make([]string, 0, len(f.Values))
	for k := range f.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
