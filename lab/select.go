package lab

import (
	"context"
	"fmt"
)

// DefaultAllowed is the status set that may trade live.
var DefaultAllowed = []Status{Approved}

// ApprovedFor returns the ids of strategies for pair and timeframe whose
// status is in allowed, in id order. An empty allowed uses DefaultAllowed.
func ApprovedFor(ctx context.Context, store Store, pair, timeframe string, allowed []Status) ([]string, error) {
	sums, err := store.StrategiesSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("approved strategies for %s %s: %w", pair, timeframe, err)
	}
	return Select(sums, pair, timeframe, allowed), nil
}

// Select filters summaries the way ApprovedFor does.
func Select(sums []StrategySummary, pair, timeframe string, allowed []Status) []string {
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	ok := make(map[Status]bool, len(allowed))
	for _, s := range allowed {
		ok[s] = true
	}

	ids := []string{}
	for _, s := range sums {
		if s.Pair == pair && s.Timeframe == timeframe && ok[s.Status] {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// CountByStatus tallies summaries per status.
func CountByStatus(sums []StrategySummary) map[string]int {
	out := make(map[string]int, len(Statuses))
	for _, s := range Statuses {
		out[s.String()] = 0
	}
	for _, s := range sums {
		out[s.Status.String()]++
	}
	return out
}
