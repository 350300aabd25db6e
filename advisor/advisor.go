package advisor

import (
	"context"

	"github.com/rustyeddy/swarm/market"
)

// Advisor produces one opinion about a feature snapshot.
type Advisor interface {
	ID() string
	Role() string
	Analyze(ctx context.Context, f market.Features) (Response, error)
}

// Func adapts a function to the Advisor interface.
type Func struct {
	AdvisorID   string
	AdvisorRole string
	Fn          func(ctx context.Context, f market.Features) (Response, error)
}

func (a Func) ID() string {
	if a.AdvisorID == "" {
		return a.AdvisorRole
	}
	return a.AdvisorID
}

func (a Func) Role() string { return a.AdvisorRole }

func (a Func) Analyze(ctx context.Context, f market.Features) (Response, error) {
	return a.Fn(ctx, f)
}
