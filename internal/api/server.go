// Package api serves the read-only status endpoints and Prometheus metrics
// of a running swarm.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/swarm/backtest"
	"github.com/rustyeddy/swarm/journal"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/risk"
	"github.com/rustyeddy/swarm/state"
)

const (
	defaultRecent   = 100
	maxRecent       = 1000
	shutdownTimeout = 5 * time.Second
	// requestsPerSecond is the per-client rate limit of the status endpoints.
	requestsPerSecond = 20
)

// Deps are the sources the endpoints read. Nil members yield empty data.
type Deps struct {
	State    *state.State
	Store    lab.Store
	Journal  journal.Journal
	Failsafe *risk.Failsafe
	Gatherer prometheus.Gatherer
	// Symbols lists the pairs reported by /api/summary.
	Symbols []string
}

type Server struct {
	echo *echo.Echo
	addr string
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

func NewServer(addr string, deps Deps, log zerolog.Logger) *Server {
	s := &Server{addr: addr, deps: deps, log: log, now: time.Now}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(requestsPerSecond))))

	e.GET("/api/summary", s.summary)
	e.GET("/api/strategies", s.strategies)
	e.GET("/api/journal/recent", s.recent)
	e.GET("/api/consistency", s.consistency)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("status server listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(sctx); err != nil {
		return err
	}
	s.log.Info().Msg("status server stopped")
	return nil
}

type pairSummary struct {
	Symbol          string             `json:"symbol"`
	Regime          string             `json:"regime"`
	RegimeUpdatedAt *time.Time         `json:"regime_updated_at,omitempty"`
	Features        map[string]float64 `json:"features,omitempty"`
}

type summaryResponse struct {
	TradesExecuted int           `json:"trades_executed"`
	TradesRejected int           `json:"trades_rejected"`
	Wins           int           `json:"wins"`
	Losses         int           `json:"losses"`
	RealizedPnL    float64       `json:"realized_pnl"`
	DailyPnL       float64       `json:"daily_pnl"`
	Paused         bool          `json:"is_trading_paused"`
	PauseReason    string        `json:"pause_reason,omitempty"`
	Pairs          []pairSummary `json:"pairs"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (s *Server) summary(c echo.Context) error {
	resp := summaryResponse{Pairs: []pairSummary{}, UpdatedAt: s.now().UTC()}
	if st := s.deps.State; st != nil {
		cnt := st.Counters()
		resp.TradesExecuted = cnt.Executed
		resp.TradesRejected = cnt.Rejected
		resp.Wins = cnt.Wins
		resp.Losses = cnt.Losses
		resp.RealizedPnL = cnt.PnL
		resp.Paused, resp.PauseReason = st.Paused()
		for _, sym := range s.deps.Symbols {
			r := st.Regime(sym)
			ps := pairSummary{Symbol: sym, Regime: r.Label.String()}
			if !r.UpdatedAt.IsZero() {
				at := r.UpdatedAt.UTC()
				ps.RegimeUpdatedAt = &at
				ps.Features = r.Features.Values
			}
			resp.Pairs = append(resp.Pairs, ps)
		}
	}
	if s.deps.Failsafe != nil {
		resp.DailyPnL = s.deps.Failsafe.DailyPnL()
	}
	return c.JSON(http.StatusOK, resp)
}

type strategyItem struct {
	ID           string            `json:"id"`
	Pair         string            `json:"pair"`
	Timeframe    string            `json:"timeframe"`
	Status       string            `json:"status"`
	Params       map[string]any    `json:"params"`
	NumBacktests int               `json:"num_backtests"`
	LastRunAt    *time.Time        `json:"last_run_at,omitempty"`
	Latest       *backtest.Metrics `json:"latest_metrics,omitempty"`
}

func (s *Server) strategies(c echo.Context) error {
	items := []strategyItem{}
	if s.deps.Store != nil {
		sums, err := s.deps.Store.StrategiesSummary(c.Request().Context())
		if err != nil {
			s.log.Error().Err(err).Msg("strategies summary")
			return echo.NewHTTPError(http.StatusInternalServerError, "lab store unavailable")
		}
		for _, sum := range sums {
			it := strategyItem{
				ID:           sum.ID,
				Pair:         sum.Pair,
				Timeframe:    sum.Timeframe,
				Status:       sum.Status.String(),
				Params:       sum.Params,
				NumBacktests: sum.NumBacktests,
				LastRunAt:    sum.LastRunAt,
				Latest:       sum.Latest,
			}
			items = append(items, it)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"strategies": items})
}

type entryItem struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe,omitempty"`
	Payload   any       `json:"payload"`
}

func (s *Server) recent(c echo.Context) error {
	limit := defaultRecent
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxRecent)
	}

	items := []entryItem{}
	if s.deps.Journal != nil {
		entries, err := s.deps.Journal.Recent(c.Request().Context(), limit)
		if err != nil {
			s.log.Error().Err(err).Msg("journal recent")
			return echo.NewHTTPError(http.StatusInternalServerError, "journal unavailable")
		}
		for _, e := range entries {
			items = append(items, entryItem{
				ID:        e.ID,
				Time:      e.Time,
				Type:      string(e.Type),
				Symbol:    e.Symbol,
				Timeframe: e.Timeframe,
				Payload:   e.Payload,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": items})
}

func (s *Server) consistency(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "status server and decision loop are up",
	})
}
