package advisor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/swarm/market"
)

// FailureCounter is notified for every advisor excluded from a cycle.
type FailureCounter interface {
	AdvisorFailure(advisor string)
}

// Collector fans a feature snapshot out to every advisor and gathers the
// opinions that come back. A failing advisor never affects its siblings.
type Collector struct {
	// Timeout bounds each advisor call. Zero means no per-call bound.
	Timeout time.Duration
	// Limit caps concurrent calls. Zero or negative means unlimited.
	Limit int

	log      zerolog.Logger
	failures FailureCounter
}

func NewCollector(log zerolog.Logger, timeout time.Duration, failures FailureCounter) *Collector {
	return &Collector{Timeout: timeout, log: log, failures: failures}
}

type callResult struct {
	op  Opinion
	err error
}

// Collect calls all advisors concurrently and returns the successful
// opinions in advisor order. It never returns an error; failures are logged
// and dropped.
func (c *Collector) Collect(ctx context.Context, f market.Features, advisors []Advisor) []Opinion {
	if len(advisors) == 0 {
		return nil
	}

	results := make([]callResult, len(advisors))

	// Each goroutine returns nil so the group never short-circuits.
	var g errgroup.Group
	if c.Limit > 0 {
		g.SetLimit(c.Limit)
	}
	for i, a := range advisors {
		g.Go(func() error {
			results[i] = c.call(ctx, a, f)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Opinion, 0, len(advisors))
	for i, r := range results {
		if r.err != nil {
			id := advisors[i].ID()
			c.log.Warn().Err(r.err).Str("advisor", id).Msg("advisor excluded from consensus")
			if c.failures != nil {
				c.failures.AdvisorFailure(id)
			}
			continue
		}
		out = append(out, r.op)
	}
	return out
}

func (c *Collector) call(ctx context.Context, a Advisor, f market.Features) (res callResult) {
	defer func() {
		if p := recover(); p != nil {
			res = callResult{err: fmt.Errorf("advisor panic: %v", p)}
		}
	}()

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	resp, err := a.Analyze(ctx, f.Clone())
	if err != nil {
		return callResult{err: err}
	}
	if err := ctx.Err(); err != nil {
		return callResult{err: err}
	}
	return callResult{op: NewOpinion(a.ID(), a.Role(), f.Asset, resp)}
}
