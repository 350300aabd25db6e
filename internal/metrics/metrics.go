package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the decision loop's Prometheus instruments.
type Recorder struct {
	cycles          *prometheus.CounterVec
	advisorFailures *prometheus.CounterVec
	trades          *prometheus.CounterVec
	sentiment       *prometheus.GaugeVec
	dissent         *prometheus.GaugeVec
	regime          *prometheus.GaugeVec
	cycleDuration   *prometheus.HistogramVec
	labStatus       *prometheus.GaugeVec
}

// New registers the instruments on reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_cycles_total",
				Help: "Decision cycles by pair and outcome",
			},
			[]string{"symbol", "outcome"},
		),
		advisorFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_advisor_failures_total",
				Help: "Advisor calls excluded from consensus",
			},
			[]string{"advisor"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarm_trades_total",
				Help: "Proposed trades by final disposition",
			},
			[]string{"symbol", "strategy", "disposition"},
		),
		sentiment: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_consensus_sentiment",
				Help: "Latest consensus sentiment",
			},
			[]string{"symbol"},
		),
		dissent: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_consensus_dissent",
				Help: "Latest advisor dissent score",
			},
			[]string{"symbol"},
		),
		regime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_regime",
				Help: "1 for the active regime label, 0 otherwise",
			},
			[]string{"symbol", "regime"},
		),
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swarm_cycle_duration_seconds",
				Help:    "Duration of one pair decision cycle",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		labStatus: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "swarm_lab_strategies",
				Help: "Strategies per lab status after the latest evaluation",
			},
			[]string{"status"},
		),
	}
}

// Cycle counts one finished cycle with its outcome and duration.
func (r *Recorder) Cycle(symbol, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(symbol, outcome).Inc()
	r.cycleDuration.WithLabelValues(symbol).Observe(seconds)
}

// AdvisorFailure counts one excluded advisor call.
func (r *Recorder) AdvisorFailure(advisor string) {
	if r == nil {
		return
	}
	r.advisorFailures.WithLabelValues(advisor).Inc()
}

// Trade counts a proposed trade's disposition (executed, rejected, blocked, failed).
func (r *Recorder) Trade(symbol, strategy, disposition string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(symbol, strategy, disposition).Inc()
}

// Consensus records the latest consensus values.
func (r *Recorder) Consensus(symbol string, sentiment, dissent float64) {
	if r == nil {
		return
	}
	r.sentiment.WithLabelValues(symbol).Set(sentiment)
	r.dissent.WithLabelValues(symbol).Set(dissent)
}

// Regime marks label active for symbol and clears the others in labels.
func (r *Recorder) Regime(symbol, label string, labels []string) {
	if r == nil {
		return
	}
	for _, l := range labels {
		v := 0.0
		if l == label {
			v = 1
		}
		r.regime.WithLabelValues(symbol, l).Set(v)
	}
}

// LabStatus records how many strategies hold each status.
func (r *Recorder) LabStatus(counts map[string]int) {
	if r == nil {
		return
	}
	for status, n := range counts {
		r.labStatus.WithLabelValues(status).Set(float64(n))
	}
}
