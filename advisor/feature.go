package advisor

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/swarm/market"
)

// FeatureAdvisor is a deterministic advisor: its sentiment is
// tanh(bias + sum(weight*feature)) and its confidence is fixed, reduced by
// the fraction of weighted features missing from the snapshot.
type FeatureAdvisor struct {
	AdvisorID   string
	AdvisorRole string
	Weights     map[string]float64
	Bias        float64
	Confidence  float64
	RiskLevel   string
}

func (a *FeatureAdvisor) ID() string   { return a.AdvisorID }
func (a *FeatureAdvisor) Role() string { return a.AdvisorRole }

func (a *FeatureAdvisor) Analyze(ctx context.Context, f market.Features) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if f.Empty() {
		return Response{}, ErrNoOpinion
	}

	names := make([]string, 0, len(a.Weights))
	for k := range a.Weights {
		names = append(names, k)
	}
	sort.Strings(names)

	score := a.Bias
	present := 0
	for _, k := range names {
		if f.Has(k) {
			present++
		}
		score += a.Weights[k] * f.Get(k)
	}

	conf := a.Confidence
	if len(names) > 0 {
		conf *= float64(present) / float64(len(names))
	}
	risk := a.RiskLevel
	if risk == "" {
		risk = riskFromVol(f.Get(market.FeatureRealizedVol24h))
	}

	return Response{
		Sentiment:  math.Tanh(score),
		Confidence: conf,
		RiskLevel:  risk,
		Notes:      fmt.Sprintf("%d/%d features present", present, len(names)),
		Raw: map[string]any{
			"score":   score,
			"present": present,
		},
	}, nil
}

func riskFromVol(vol float64) string {
	switch {
	case vol > 0.05:
		return "high"
	case vol < 0.015:
		return "low"
	default:
		return DefaultRiskLevel
	}
}
