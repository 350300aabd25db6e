package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Sortable(t *testing.T) {
	t.Parallel()

	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		require.Less(t, prev, next)
		prev = next
	}
}

func TestNewAt_OrdersByTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	later := NewAt(at.Add(time.Second))
	earlier := NewAt(at)
	assert.Less(t, earlier, later)

	parsed, err := ulid.ParseStrict(earlier)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), parsed.Time())
}
