package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weights(as []Allocation) map[string]float64 {
	out := map[string]float64{}
	for _, a := range as {
		out[a.StrategyID] = a.Weight
	}
	return out
}

func sum(as []Allocation) float64 {
	total := 0.0
	for _, a := range as {
		total += a.Weight
	}
	return total
}

func TestAllocate(t *testing.T) {
	t.Parallel()

	ids := []string{"a", "b", "c", "d"}

	tests := []struct {
		name       string
		ids        []string
		sentiment  float64
		confidence float64
		want       map[string]float64
	}{
		{
			name: "no tilt", ids: ids, sentiment: 0.2, confidence: 0.5,
			want: map[string]float64{"a": 0.25, "b": 0.25, "c": 0.25, "d": 0.25},
		},
		{
			name: "positive tilt favors first half", ids: ids, sentiment: 0.8, confidence: 0.5,
			want: map[string]float64{"a": 0.3, "b": 0.3, "c": 0.2, "d": 0.2},
		},
		{
			name: "negative tilt favors second half", ids: ids, sentiment: -0.8, confidence: 0.5,
			want: map[string]float64{"a": 0.2, "b": 0.2, "c": 0.3, "d": 0.3},
		},
		{
			name: "single strategy never tilts", ids: []string{"a"}, sentiment: 1, confidence: 1,
			want: map[string]float64{"a": 1},
		},
		{
			name: "odd count", ids: []string{"a", "b", "c"}, sentiment: 1, confidence: 1,
			want: map[string]float64{"a": 1.2 / 2.8, "b": 0.8 / 2.8, "c": 0.8 / 2.8},
		},
		{
			name: "duplicates collapse", ids: []string{"a", "b", "a"}, sentiment: 0, confidence: 1,
			want: map[string]float64{"a": 0.5, "b": 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Allocate(tt.ids, tt.sentiment, tt.confidence)
			require.Len(t, got, len(tt.want))
			assert.InDelta(t, 1.0, sum(got), 1e-12)
			for id, w := range weights(got) {
				assert.InDelta(t, tt.want[id], w, 1e-12, id)
			}
		})
	}
}

func TestAllocate_Empty(t *testing.T) {
	t.Parallel()

	got := Allocate(nil, 1, 1)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAllocate_PreservesOrder(t *testing.T) {
	t.Parallel()

	got := Allocate([]string{"z", "y", "x"}, 0, 0)
	assert.Equal(t, "z", got[0].StrategyID)
	assert.Equal(t, "y", got[1].StrategyID)
	assert.Equal(t, "x", got[2].StrategyID)
}
