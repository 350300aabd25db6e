package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/swarm/advisor"
	"github.com/rustyeddy/swarm/broker"
	"github.com/rustyeddy/swarm/config"
	"github.com/rustyeddy/swarm/consensus"
	"github.com/rustyeddy/swarm/feeds"
	"github.com/rustyeddy/swarm/internal/api"
	"github.com/rustyeddy/swarm/internal/logging"
	"github.com/rustyeddy/swarm/internal/metrics"
	"github.com/rustyeddy/swarm/journal"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/risk"
	"github.com/rustyeddy/swarm/state"
	"github.com/rustyeddy/swarm/swarm"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live decision loop",
	Long: `Run the decision loop over every configured pair with a dry-run executor.

Each iteration collects advisor opinions, arbitrates a consensus, classifies
the regime, allocates across the lab-approved strategies for the pair and
executes the sized trades that pass the risk checks.

Example:
  swarm run --config swarm.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runConfigPath string
	runIterations int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to config file (required)")
	runCmd.Flags().IntVar(&runIterations, "iterations", 0, "stop after N iterations (overrides trading.max_iterations)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	if runIterations > 0 {
		cfg.Trading.MaxIterations = runIterations
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, p := range []string{cfg.Storage.LabDB, cfg.Storage.JournalDB} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	store, err := lab.NewSQLite(cfg.Storage.LabDB)
	if err != nil {
		return fmt.Errorf("open lab db: %w", err)
	}
	defer store.Close()

	jrnl, err := journal.NewSQLite(cfg.Storage.JournalDB)
	if err != nil {
		return fmt.Errorf("open journal db: %w", err)
	}
	defer jrnl.Close()

	src, closeSrc, err := featureSource(cfg, log)
	if err != nil {
		return err
	}
	defer closeSrc()

	allowed, err := cfg.AllowedStatuses()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	arbiter := consensus.NewArbiter()
	for id, score := range cfg.Consensus.Scores {
		arbiter.SetScore(id, score)
	}

	st := state.New(state.DefaultHistory)
	failsafe := risk.NewFailsafe(cfg.Failsafe.MaxDailyLossPct, cfg.Trading.InitialCapital)

	pipeline := swarm.NewPipeline(swarm.Deps{
		Advisors:  buildAdvisors(cfg.Advisors),
		Collector: advisor.NewCollector(log, cfg.Trading.AdvisorTimeout, rec),
		Arbiter:   arbiter,
		Store:     store,
		Features:  src,
		Candles:   feeds.NewCSVCandles(cfg.Trading.CandleDir),
		Executor:  broker.NewDryRun(cfg.Trading.InitialCapital),
		Stats:     risk.NewLabStats(store),
		Failsafe:  failsafe,
		State:     st,
		Journal:   jrnl,
		Metrics:   rec,
	}, swarm.Settings{
		Policy:              cfg.Policy(),
		Regime:              cfg.Regime.Thresholds,
		RegimeCaps:          cfg.RegimeCaps(),
		ConfidenceThreshold: cfg.Consensus.ConfidenceThreshold,
		CandleLimit:         cfg.Trading.CandleLimit,
		RefreshEvery:        cfg.Trading.RefreshEvery,
		Allowed:             allowed,
		InitialCapital:      cfg.Trading.InitialCapital,
		FeatureMaxAge:       2 * cfg.Trading.FeatureInterval,
	}, log)

	contexts := swarm.BuildContexts(cfg.Pairs)
	loop := swarm.NewLoop(pipeline, contexts, cfg.Trading.CycleInterval, log)
	loop.FeatureInterval = cfg.Trading.FeatureInterval
	loop.MaxIterations = cfg.Trading.MaxIterations
	loop.OnCycle = func(r swarm.CycleReport) {
		log.Debug().
			Str("symbol", r.Symbol).
			Int("iteration", r.Iteration).
			Str("outcome", r.Outcome).
			Msg("cycle")
	}

	for _, pc := range contexts {
		log.Info().Str("pair", pc.String()).Msg("pair context")
	}

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		defer stopServer()
		return loop.Run(gctx)
	})
	if cfg.Metrics.Enabled {
		symbols := make([]string, 0, len(contexts))
		for _, pc := range contexts {
			symbols = append(symbols, pc.Symbol)
		}
		srv := api.NewServer(cfg.Metrics.Addr, api.Deps{
			State:    st,
			Store:    store,
			Journal:  jrnl,
			Failsafe: failsafe,
			Gatherer: reg,
			Symbols:  symbols,
		}, logging.Component(log, "api"))
		g.Go(func() error { return srv.Run(srvCtx) })
	}

	log.Info().
		Int("pairs", len(contexts)).
		Int("advisors", len(cfg.Advisors)).
		Str("features", cfg.Features.Source).
		Msg("swarm started")

	if err := g.Wait(); err != nil {
		return err
	}

	c := st.Counters()
	fmt.Fprintf(cmd.OutOrStdout(), "Executed: %d  Rejected: %d  Wins: %d  Losses: %d  PnL: %.2f\n",
		c.Executed, c.Rejected, c.Wins, c.Losses, c.PnL)
	return nil
}

func buildAdvisors(cfgs []config.AdvisorConfig) []advisor.Advisor {
	out := make([]advisor.Advisor, 0, len(cfgs))
	for _, a := range cfgs {
		out = append(out, &advisor.FeatureAdvisor{
			AdvisorID:   a.ID,
			AdvisorRole: a.Role,
			Weights:     a.Weights,
			Bias:        a.Bias,
			Confidence:  a.Confidence,
		})
	}
	return out
}

// featureSource returns the configured snapshot source and its closer.
func featureSource(cfg *config.Config, log zerolog.Logger) (feeds.Source, func(), error) {
	switch cfg.Features.Source {
	case "redis":
		src, err := redisSource(cfg.Features.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil
	default:
		return feeds.NewStatic(cfg.Features.Static), func() {}, nil
	}
}

func redisSource(r config.RedisConfig, log zerolog.Logger) (*feeds.RedisSource, error) {
	src, err := feeds.NewRedisSource(logging.Component(log, "features"),
		feeds.WithAddr(r.Addr),
		feeds.WithPassword(r.Password),
		feeds.WithDB(r.DB),
		feeds.WithPrefix(r.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis features: %w", err)
	}
	return src, nil
}
