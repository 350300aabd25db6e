package swarm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/swarm/internal/logging"
	"github.com/rustyeddy/swarm/lab"
)

// Loop runs every pair context once per iteration, one after the other,
// while a background task keeps the feature snapshots fresh.
type Loop struct {
	Pipeline *Pipeline
	Contexts []*PairContext

	// Interval is the pause between iterations.
	Interval time.Duration
	// FeatureInterval is the snapshot refresh period. Zero disables the
	// refresher.
	FeatureInterval time.Duration
	// MaxIterations stops the loop after that many iterations. Zero runs
	// until ctx is cancelled.
	MaxIterations int

	// OnCycle, if set, receives every cycle report.
	OnCycle func(CycleReport)

	log zerolog.Logger
}

func NewLoop(p *Pipeline, contexts []*PairContext, interval time.Duration, log zerolog.Logger) *Loop {
	return &Loop{
		Pipeline: p,
		Contexts: contexts,
		Interval: interval,
		log:      logging.Component(log, "loop"),
	}
}

// Run blocks until ctx is cancelled or MaxIterations is reached. The
// cancellation is checked between cycles, never inside one, and the
// background refresher is awaited before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if l.FeatureInterval > 0 {
		g.Go(func() error { return l.refreshFeatures(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return l.decide(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Loop) decide(ctx context.Context) error {
	for iteration := 1; l.MaxIterations <= 0 || iteration <= l.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return nil
		}
		l.log.Info().Int("iteration", iteration).Msg("iteration start")

		if l.paused() {
			l.log.Warn().Int("iteration", iteration).Msg("trading paused by failsafe, skipping all pairs")
		} else {
			if (iteration-1)%l.Pipeline.RefreshEvery == 0 {
				l.recordLabStatus(ctx)
			}
			for _, pc := range l.Contexts {
				if ctx.Err() != nil {
					return nil
				}
				rep := l.Pipeline.RunCycle(ctx, pc, iteration)
				if l.OnCycle != nil {
					l.OnCycle(rep)
				}
			}
		}

		if l.MaxIterations > 0 && iteration == l.MaxIterations {
			break
		}
		if err := sleep(ctx, l.Interval); err != nil {
			return nil
		}
	}
	return nil
}

// paused resumes a failsafe pause once the failsafe has rolled over to a
// new day.
func (l *Loop) paused() bool {
	st := l.Pipeline.State
	paused, reason := st.Paused()
	if !paused {
		return false
	}
	if !l.Pipeline.Failsafe.Paused() {
		l.log.Info().Str("reason", reason).Msg("failsafe cleared, resuming")
		st.Resume()
		return false
	}
	return true
}

func (l *Loop) recordLabStatus(ctx context.Context) {
	if l.Pipeline.Metrics == nil {
		return
	}
	sums, err := l.Pipeline.Store.StrategiesSummary(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("lab summary")
		return
	}
	l.Pipeline.Metrics.LabStatus(lab.CountByStatus(sums))
}

func (l *Loop) assets() []string {
	seen := map[string]bool{}
	var out []string
	for _, pc := range l.Contexts {
		if pc.Enabled && !seen[pc.Base] {
			seen[pc.Base] = true
			out = append(out, pc.Base)
		}
	}
	return out
}

// refreshFeatures writes a fresh snapshot per asset into the shared state
// every FeatureInterval. Source errors keep the previous snapshot.
func (l *Loop) refreshFeatures(ctx context.Context) error {
	assets := l.assets()
	t := time.NewTicker(l.FeatureInterval)
	defer t.Stop()

	for {
		for _, asset := range assets {
			if ctx.Err() != nil {
				return nil
			}
			f, err := l.Pipeline.Features.Snapshot(ctx, asset)
			if err != nil {
				l.log.Debug().Err(err).Str("asset", asset).Msg("feature refresh")
				continue
			}
			l.Pipeline.State.SetFeatures(f)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
