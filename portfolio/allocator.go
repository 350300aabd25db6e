// Package portfolio splits capital across approved strategies.
package portfolio

import "math"

// TiltThreshold is the |sentiment*confidence| above which weights tilt.
const TiltThreshold = 0.1

const (
	favoredFactor    = 1.2
	disfavoredFactor = 0.8
)

type Allocation struct {
	StrategyID string  `json:"strategy_id"`
	Weight     float64 `json:"weight"`
}

// Allocate weights ids equally, then tilts toward the first half of the list
// when sentiment*confidence > TiltThreshold, or the second half when it is
// below -TiltThreshold. Weights sum to 1. Duplicate ids are collapsed,
// keeping the first occurrence.
func Allocate(ids []string, sentiment, confidence float64) []Allocation {
	uniq := dedupe(ids)
	n := len(uniq)
	if n == 0 {
		return []Allocation{}
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}

	tilt := sentiment * confidence
	if n >= 2 && math.Abs(tilt) > TiltThreshold {
		mid := n / 2
		for i := range weights {
			first := i < mid
			if first == (tilt > 0) {
				weights[i] *= favoredFactor
			} else {
				weights[i] *= disfavoredFactor
			}
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make([]Allocation, n)
	for i, id := range uniq {
		out[i] = Allocation{StrategyID: id, Weight: weights[i] / total}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
