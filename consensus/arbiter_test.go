package consensus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/swarm/advisor"
)

func op(id string, s, c float64) advisor.Opinion {
	return advisor.Opinion{AdvisorID: id, Sentiment: s, Confidence: c}
}

func sumWeights(r Result) float64 {
	total := 0.0
	for _, w := range r.Weights {
		total += w
	}
	return total
}

func TestArbitrate_Empty(t *testing.T) {
	t.Parallel()

	r := NewArbiter().Arbitrate(nil)
	assert.Equal(t, 0.0, r.Sentiment)
	assert.Equal(t, 0.0, r.Confidence)
	assert.Equal(t, 0.0, r.Dissent)
	assert.Empty(t, r.Weights)
}

func TestArbitrate_Weighted(t *testing.T) {
	t.Parallel()

	a := NewArbiter()
	r := a.Arbitrate([]advisor.Opinion{
		op("one", 1.0, 0.75),
		op("two", -1.0, 0.25),
	})

	assert.InDelta(t, 0.75, r.Weights["one"], 1e-12)
	assert.InDelta(t, 0.25, r.Weights["two"], 1e-12)
	assert.InDelta(t, 0.5, r.Sentiment, 1e-12)
	assert.InDelta(t, 0.75*0.75+0.25*0.25, r.Confidence, 1e-12)
	assert.InDelta(t, 1.0, r.Dissent, 1e-12)
	assert.Equal(t, "long", r.Direction())
}

func TestArbitrate_TrackedScores(t *testing.T) {
	t.Parallel()

	a := NewArbiter()
	a.SetScore("two", 3)
	r := a.Arbitrate([]advisor.Opinion{
		op("one", 1.0, 0.5),
		op("two", -1.0, 0.5),
	})

	assert.InDelta(t, 0.25, r.Weights["one"], 1e-12)
	assert.InDelta(t, 0.75, r.Weights["two"], 1e-12)
	assert.Equal(t, 3.0, r.BaseScores["two"])
	assert.Equal(t, DefaultBaseScore, r.BaseScores["one"])
	assert.Equal(t, "short", r.Direction())
}

func TestArbitrate_ZeroConfidenceFallsBackToUniform(t *testing.T) {
	t.Parallel()

	r := NewArbiter().Arbitrate([]advisor.Opinion{
		op("one", 0.6, 0),
		op("two", -0.2, 0),
		op("three", 0.2, 0),
	})

	for _, id := range []string{"one", "two", "three"} {
		assert.InDelta(t, 1.0/3, r.Weights[id], 1e-12)
	}
	assert.InDelta(t, 0.2, r.Sentiment, 1e-12)
	assert.Equal(t, 0.0, r.Confidence)
}

func TestArbitrate_WeightsSumToOne(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	a := NewArbiter()
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(8)
		ops := make([]advisor.Opinion, n)
		for i := range ops {
			ops[i] = op(string(rune('a'+i)), rng.Float64()*2-1, rng.Float64())
		}
		r := a.Arbitrate(ops)
		assert.InDelta(t, 1.0, sumWeights(r), 1e-9)
		assert.GreaterOrEqual(t, r.Sentiment, -1.0)
		assert.LessOrEqual(t, r.Sentiment, 1.0)
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

func TestArbitrate_OrderInvariant(t *testing.T) {
	t.Parallel()

	ops := []advisor.Opinion{
		op("one", 0.9, 0.8),
		op("two", -0.4, 0.6),
		op("three", 0.1, 0.3),
		op("four", -0.7, 0.9),
	}
	a := NewArbiter()
	want := a.Arbitrate(ops)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		shuffled := make([]advisor.Opinion, len(ops))
		copy(shuffled, ops)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := a.Arbitrate(shuffled)
		require.Equal(t, want.Dissent, got.Dissent)
		assert.Equal(t, want.Sentiment, got.Sentiment)
		assert.Equal(t, want.Confidence, got.Confidence)
		assert.Equal(t, want.Weights, got.Weights)
	}
}
