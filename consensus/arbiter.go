package consensus

import (
	"math"
	"sort"
	"sync"

	"github.com/rustyeddy/swarm/advisor"
)

// DefaultBaseScore applies to advisors with no tracked performance score.
const DefaultBaseScore = 1.0

// Result is the weighted consensus of one cycle's opinions.
type Result struct {
	Sentiment  float64
	Confidence float64
	// Dissent is the population standard deviation of the raw sentiments.
	Dissent float64
	// Weights maps advisor id to its normalized weight. Sums to 1 when
	// at least one opinion was supplied.
	Weights map[string]float64
	// BaseScores maps advisor id to the base score used this cycle.
	BaseScores map[string]float64
}

// Direction is "long" for positive sentiment and "short" otherwise.
func (r Result) Direction() string {
	if r.Sentiment > 0 {
		return "long"
	}
	return "short"
}

// Arbiter aggregates advisor opinions using per-advisor base scores.
type Arbiter struct {
	mu     sync.RWMutex
	scores map[string]float64
}

func NewArbiter() *Arbiter {
	return &Arbiter{scores: map[string]float64{}}
}

// SetScore tracks a performance score for an advisor.
func (a *Arbiter) SetScore(advisorID string, score float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scores[advisorID] = score
}

// Score returns the advisor's tracked score or DefaultBaseScore.
func (a *Arbiter) Score(advisorID string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.scores[advisorID]; ok {
		return s
	}
	return DefaultBaseScore
}

// Arbitrate computes the weighted consensus. Each opinion weighs
// base_score*confidence; if no weight is positive every opinion weighs the
// same. The result does not depend on the order of ops.
func (a *Arbiter) Arbitrate(ops []advisor.Opinion) Result {
	res := Result{
		Weights:    map[string]float64{},
		BaseScores: map[string]float64{},
	}
	if len(ops) == 0 {
		return res
	}

	sorted := make([]advisor.Opinion, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AdvisorID != sorted[j].AdvisorID {
			return sorted[i].AdvisorID < sorted[j].AdvisorID
		}
		if sorted[i].Sentiment != sorted[j].Sentiment {
			return sorted[i].Sentiment < sorted[j].Sentiment
		}
		return sorted[i].Confidence < sorted[j].Confidence
	})

	weights := make([]float64, len(sorted))
	total := 0.0
	for i, op := range sorted {
		base := a.Score(op.AdvisorID)
		res.BaseScores[op.AdvisorID] = base
		weights[i] = base * op.Confidence
		total += weights[i]
	}
	if !(total > 0) {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(weights))
	}

	sentiments := make([]float64, len(sorted))
	for i, op := range sorted {
		w := weights[i] / total
		res.Sentiment += w * op.Sentiment
		res.Confidence += w * op.Confidence
		res.Weights[op.AdvisorID] += w
		sentiments[i] = op.Sentiment
	}
	res.Dissent = popStd(sentiments)
	return res
}

func popStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	v := 0.0
	for _, x := range xs {
		d := x - mean
		v += d * d
	}
	return math.Sqrt(v / float64(len(xs)))
}
