package swarm

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/swarm/advisor"
	"github.com/rustyeddy/swarm/broker"
	"github.com/rustyeddy/swarm/consensus"
	"github.com/rustyeddy/swarm/feeds"
	"github.com/rustyeddy/swarm/internal/logging"
	"github.com/rustyeddy/swarm/internal/metrics"
	"github.com/rustyeddy/swarm/journal"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/portfolio"
	"github.com/rustyeddy/swarm/regime"
	"github.com/rustyeddy/swarm/risk"
	"github.com/rustyeddy/swarm/state"
	"github.com/rustyeddy/swarm/strategies"
)

// Cycle outcomes. Everything except Traded and Blocked is a short-circuit.
const (
	OutcomeDisabled      = "disabled"
	OutcomeNoApproved    = "no_approved"
	OutcomeNoFeatures    = "no_features"
	OutcomeNoOpinions    = "no_opinions"
	OutcomeLowConfidence = "low_confidence"
	OutcomeNoAllocation  = "no_allocation"
	OutcomeNoCandles     = "no_candles"
	OutcomeNoTrades      = "no_trades"
	OutcomeNoBudget      = "no_budget"
	OutcomeTraded        = "traded"
	OutcomeBlocked       = "blocked"
)

// Trade dispositions recorded per proposed trade.
const (
	DispositionExecuted = "executed"
	DispositionBlocked  = "blocked"
	DispositionRejected = "rejected"
	DispositionFailed   = "failed"
)

// Deps are the collaborators of a Pipeline. Store, Features, Candles and
// Executor are required; the rest have defaults.
type Deps struct {
	Advisors  []advisor.Advisor
	Collector *advisor.Collector
	Arbiter   *consensus.Arbiter
	Generator *strategies.Generator
	Store     lab.Store
	Features  feeds.Source
	Candles   feeds.CandleSource
	Executor  broker.Executor
	Stats     risk.StatsProvider
	Failsafe  *risk.Failsafe
	State     *state.State
	Journal   journal.Journal
	Metrics   *metrics.Recorder
}

// Settings are the pipeline's tunables.
type Settings struct {
	Policy              risk.Policy
	Regime              regime.Thresholds
	RegimeCaps          map[regime.Label]float64
	ConfidenceThreshold float64
	CandleLimit         int
	RefreshEvery        int
	Allowed             []lab.Status
	InitialCapital      float64
	// FeatureMaxAge bounds how old a cached snapshot may be and still
	// serve a cycle. Zero always asks the source.
	FeatureMaxAge time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Policy:              risk.DefaultPolicy(),
		Regime:              regime.DefaultThresholds(),
		ConfidenceThreshold: 0.6,
		CandleLimit:         200,
		RefreshEvery:        10,
		Allowed:             lab.DefaultAllowed,
		InitialCapital:      10_000,
	}
}

// Pipeline runs one decision cycle for a pair context.
type Pipeline struct {
	Deps
	Settings

	sizer       risk.KellySizer
	validator   risk.Validator
	correlation risk.CorrelationGuard
	scaler      regime.Scaler
	log         zerolog.Logger
}

func NewPipeline(d Deps, s Settings, log zerolog.Logger) *Pipeline {
	log = logging.Component(log, "pipeline")
	if d.Collector == nil {
		d.Collector = advisor.NewCollector(log, 0, d.Metrics)
	}
	if d.Arbiter == nil {
		d.Arbiter = consensus.NewArbiter()
	}
	if d.Generator == nil {
		d.Generator = strategies.NewGenerator(log)
	}
	if d.Stats == nil {
		d.Stats = risk.StaticStats(risk.DefaultStats)
	}
	if d.State == nil {
		d.State = state.New(0)
	}
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Failsafe == nil {
		d.Failsafe = risk.NewFailsafe(s.Policy.MaxDailyLossPct, s.InitialCapital)
	}
	if s.RefreshEvery <= 0 {
		s.RefreshEvery = 1
	}

	return &Pipeline{
		Deps:        d,
		Settings:    s,
		sizer:       s.Policy.Sizer(),
		validator:   s.Policy.Validator(),
		correlation: s.Policy.CorrelationGuard(),
		scaler:      regime.NewScaler(s.Policy.MaxPosition, s.RegimeCaps),
		log:         log,
	}
}

// Rejection is a proposed trade stopped by a risk filter or the executor.
type Rejection struct {
	Trade       strategies.ProposedTrade
	Fraction    float64
	Disposition string
	Reason      string
}

// CycleReport summarizes one cycle for one pair.
type CycleReport struct {
	Symbol    string
	Timeframe string
	Iteration int
	Outcome   string

	Approved  []string
	Opinions  []advisor.Opinion
	Consensus consensus.Result
	Scaled    regime.Scaled
	Proposed  []strategies.ProposedTrade
	Budget    float64
	Fills     []broker.Fill
	Rejected  []Rejection
}

// RunCycle never returns an error: data gaps end the cycle early and are
// reported in the outcome.
func (p *Pipeline) RunCycle(ctx context.Context, pc *PairContext, iteration int) (rep CycleReport) {
	start := time.Now()
	log := logging.Pair(p.log, pc.Symbol, pc.Timeframe)
	rep = CycleReport{Symbol: pc.Symbol, Timeframe: pc.Timeframe, Iteration: iteration}
	defer func() {
		p.Metrics.Cycle(pc.Symbol, rep.Outcome, time.Since(start).Seconds())
		log.Debug().Int("iteration", iteration).Str("outcome", rep.Outcome).Msg("cycle done")
	}()

	if !pc.Enabled {
		rep.Outcome = OutcomeDisabled
		return rep
	}

	if pc.Approved == nil || (iteration-1)%p.RefreshEvery == 0 {
		if err := pc.RefreshApproved(ctx, p.Store, p.Allowed); err != nil {
			log.Error().Err(err).Msg("refresh approved strategies")
			_ = p.Journal.LogError(ctx, pc.Symbol, err, nil)
		}
	}
	rep.Approved = pc.Approved
	if len(pc.Approved) == 0 {
		log.Info().Msg("no approved strategies, skipping")
		rep.Outcome = OutcomeNoApproved
		return rep
	}

	features, ok := p.features(ctx, pc, log)
	if !ok {
		rep.Outcome = OutcomeNoFeatures
		return rep
	}

	rep.Opinions = p.Collector.Collect(ctx, features, p.Advisors)
	if len(rep.Opinions) == 0 {
		log.Info().Msg("no advisor opinions this cycle")
		rep.Outcome = OutcomeNoOpinions
		return rep
	}

	res := p.Arbiter.Arbitrate(rep.Opinions)
	rep.Consensus = res
	p.Metrics.Consensus(pc.Symbol, res.Sentiment, res.Dissent)

	label := regime.Classify(features, p.Regime)
	p.State.SetRegime(pc.Symbol, label, features)
	p.State.AppendConsensus(pc.Symbol, state.ConsensusPoint{Time: features.Time, Result: res, Regime: label})
	p.Metrics.Regime(pc.Symbol, label.String(), labelNames())

	rep.Scaled = p.scaler.Scale(label, res.Sentiment, res.Confidence)
	if err := p.Journal.LogRegime(ctx, pc.Symbol, pc.Timeframe, journal.Regime{
		Label:      label.String(),
		Direction:  res.Direction(),
		Sentiment:  rep.Scaled.Sentiment,
		Confidence: rep.Scaled.Confidence,
		Dissent:    res.Dissent,
		MaxSize:    rep.Scaled.MaxPositionSize,
	}); err != nil {
		log.Warn().Err(err).Msg("journal regime")
	}
	log.Info().
		Str("regime", label.String()).
		Str("direction", res.Direction()).
		Float64("sentiment", rep.Scaled.Sentiment).
		Float64("confidence", rep.Scaled.Confidence).
		Float64("dissent", res.Dissent).
		Int("opinions", len(rep.Opinions)).
		Msg("consensus")

	if rep.Scaled.Confidence < p.ConfidenceThreshold {
		log.Info().
			Float64("confidence", rep.Scaled.Confidence).
			Float64("threshold", p.ConfidenceThreshold).
			Msg("consensus confidence too low, skipping")
		rep.Outcome = OutcomeLowConfidence
		return rep
	}

	allocs := portfolio.Allocate(pc.Approved, rep.Scaled.Sentiment, rep.Scaled.Confidence)
	if len(allocs) == 0 {
		rep.Outcome = OutcomeNoAllocation
		return rep
	}

	candles, err := p.Candles.Candles(ctx, pc.Symbol, pc.Timeframe, p.CandleLimit)
	if err != nil || len(candles) == 0 {
		log.Info().Err(err).Msg("no candles, skipping")
		rep.Outcome = OutcomeNoCandles
		return rep
	}

	rep.Proposed = p.Generator.Propose(pc.Symbol, pc.Timeframe, candles, allocs)
	if len(rep.Proposed) == 0 {
		rep.Outcome = OutcomeNoTrades
		return rep
	}

	stats, err := p.Stats.Stats(ctx, pc.Symbol)
	if err != nil {
		log.Warn().Err(err).Msg("strategy stats unavailable, using defaults")
		stats = risk.DefaultStats
	}
	rep.Budget = math.Min(p.sizer.Size(rep.Scaled.Confidence, stats), rep.Scaled.MaxPositionSize)
	if rep.Budget <= 0 {
		log.Info().Float64("budget", rep.Budget).Msg("kelly budget <= 0, skipping")
		rep.Outcome = OutcomeNoBudget
		return rep
	}

	rawSum := 0.0
	for _, t := range rep.Proposed {
		rawSum += math.Max(t.PositionFraction, 0)
	}
	if rawSum <= 0 {
		rep.Outcome = OutcomeNoTrades
		return rep
	}

	price := candles[len(candles)-1].Close
	for _, t := range rep.Proposed {
		if t.PositionFraction <= 0 {
			continue
		}
		frac := rep.Budget * t.PositionFraction / rawSum
		fill, rej, ok := p.execute(ctx, pc, t, frac, price, log)
		if ok {
			rep.Fills = append(rep.Fills, fill)
		} else {
			rep.Rejected = append(rep.Rejected, rej)
		}
	}

	if len(rep.Fills) > 0 {
		rep.Outcome = OutcomeTraded
	} else {
		rep.Outcome = OutcomeBlocked
	}
	return rep
}

func (p *Pipeline) features(ctx context.Context, pc *PairContext, log zerolog.Logger) (market.Features, bool) {
	if p.FeatureMaxAge > 0 {
		if f, ok := p.State.Features(pc.Base); ok && !f.Empty() && time.Since(f.Time) <= p.FeatureMaxAge {
			return f, true
		}
	}
	f, err := p.Features.Snapshot(ctx, pc.Base)
	if err != nil {
		log.Info().Err(err).Msg("no feature snapshot, skipping")
		return market.Features{}, false
	}
	p.State.SetFeatures(f)
	return f, true
}

// marker is implemented by executors that value positions at a mark price.
type marker interface {
	Mark(symbol string, price float64)
}

// equityer is implemented by executors that know their account equity.
type equityer interface {
	Equity() float64
}

func (p *Pipeline) equity() float64 {
	if e, ok := p.Executor.(equityer); ok {
		return e.Equity()
	}
	return p.InitialCapital
}

func (p *Pipeline) execute(ctx context.Context, pc *PairContext, t strategies.ProposedTrade, frac, price float64, log zerolog.Logger) (broker.Fill, Rejection, bool) {
	rej := Rejection{Trade: t, Fraction: frac}
	log = log.With().Str("strategy", t.StrategyID).Str("side", string(t.Side)).Float64("fraction", frac).Logger()

	open, err := p.Executor.OpenPositions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("open positions unavailable")
		rej.Disposition, rej.Reason = DispositionFailed, err.Error()
		p.Metrics.Trade(pc.Symbol, t.StrategyID, rej.Disposition)
		return broker.Fill{}, rej, false
	}

	if d := p.correlation.Check(pc.Symbol, t.Side, frac, open, p.equity()); !d.Allowed {
		log.Warn().Str("reason", d.Reason()).Msg("trade blocked by correlation")
		rej.Disposition, rej.Reason = DispositionBlocked, d.Reason()
		p.Metrics.Trade(pc.Symbol, t.StrategyID, rej.Disposition)
		return broker.Fill{}, rej, false
	}

	if d := p.validator.Validate(pc.Symbol, frac); !d.Allowed {
		log.Warn().Str("reason", d.Reason()).Msg("trade rejected")
		p.State.RecordRejected()
		rej.Disposition, rej.Reason = DispositionRejected, d.Reason()
		p.Metrics.Trade(pc.Symbol, t.StrategyID, rej.Disposition)
		return broker.Fill{}, rej, false
	}

	if m, ok := p.Executor.(marker); ok {
		m.Mark(pc.Symbol, price)
	}
	fill, err := p.Executor.Execute(ctx, broker.Order{
		Symbol:     pc.Symbol,
		Side:       t.Side,
		Fraction:   frac,
		Price:      price,
		StrategyID: t.StrategyID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("execution failed")
		_ = p.Journal.LogError(ctx, pc.Symbol, err, map[string]any{"strategy_id": t.StrategyID})
		rej.Disposition, rej.Reason = DispositionFailed, err.Error()
		p.Metrics.Trade(pc.Symbol, t.StrategyID, rej.Disposition)
		return broker.Fill{}, rej, false
	}

	p.State.RecordTrade(fill.RealizedPnL)
	p.Metrics.Trade(pc.Symbol, t.StrategyID, DispositionExecuted)
	if err := p.Journal.LogTrade(ctx, pc.Symbol, pc.Timeframe, journal.Trade{
		StrategyID: t.StrategyID,
		Side:       string(t.Side),
		Fraction:   frac,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Reason:     t.Meta.Reason,
		OrderID:    fill.OrderID,
	}); err != nil {
		log.Warn().Err(err).Msg("journal trade")
	}
	log.Info().
		Float64("qty", fill.Quantity).
		Float64("price", fill.Price).
		Float64("realized", fill.RealizedPnL).
		Msg("trade executed")

	if p.Failsafe.Record(fill.RealizedPnL) {
		if paused, _ := p.State.Paused(); !paused {
			log.Warn().Float64("daily_pnl", p.Failsafe.DailyPnL()).Msg("daily loss limit hit, pausing")
			p.State.Pause("daily loss limit")
			_ = p.Journal.LogInfo(ctx, pc.Symbol, "trading paused by failsafe", map[string]any{
				"daily_pnl": p.Failsafe.DailyPnL(),
			})
		}
	}
	return fill, rej, true
}

func labelNames() []string {
	out := make([]string, len(regime.Labels))
	for i, l := range regime.Labels {
		out[i] = l.String()
	}
	return out
}
