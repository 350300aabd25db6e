package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/swarm/internal/logging"
	"github.com/rustyeddy/swarm/lab"
	"github.com/rustyeddy/swarm/market"
	"github.com/rustyeddy/swarm/regime"
	"github.com/rustyeddy/swarm/risk"
)

var validate = validator.New()

// Config is the complete swarm configuration.
type Config struct {
	Logging     logging.Config    `json:"logging" yaml:"logging"`
	Trading     TradingConfig     `json:"trading" yaml:"trading"`
	Consensus   ConsensusConfig   `json:"consensus" yaml:"consensus"`
	Regime      RegimeConfig      `json:"regime" yaml:"regime"`
	Lab         LabConfig         `json:"lab" yaml:"lab"`
	Validator   ValidatorConfig   `json:"validator" yaml:"validator"`
	Correlation CorrelationConfig `json:"correlation" yaml:"correlation"`
	Failsafe    FailsafeConfig    `json:"failsafe" yaml:"failsafe"`
	Pairs       []PairConfig      `json:"pairs" yaml:"pairs" validate:"dive"`
	Advisors    []AdvisorConfig   `json:"advisors" yaml:"advisors" validate:"dive"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Features    FeaturesConfig    `json:"features" yaml:"features"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
}

// TradingConfig drives the live loop.
type TradingConfig struct {
	InitialCapital  float64       `json:"initial_capital" yaml:"initial_capital" default:"10000" validate:"gt=0"`
	KellyFraction   float64       `json:"kelly_fraction" yaml:"kelly_fraction" default:"0.25" validate:"gt=0,lte=1"`
	MaxPositionSize float64       `json:"max_position_size" yaml:"max_position_size" default:"0.05" validate:"gt=0,lte=1"`
	CycleInterval   time.Duration `json:"cycle_interval" yaml:"cycle_interval" default:"30s" validate:"gte=0"`
	FeatureInterval time.Duration `json:"feature_interval" yaml:"feature_interval" default:"10s" validate:"gte=0"`
	AdvisorTimeout  time.Duration `json:"advisor_timeout" yaml:"advisor_timeout" default:"20s" validate:"gte=0"`
	CandleLimit     int           `json:"candle_limit" yaml:"candle_limit" default:"200" validate:"gt=0"`
	RefreshEvery    int           `json:"refresh_every" yaml:"refresh_every" default:"10" validate:"gt=0"`
	CandleDir       string        `json:"candle_dir" yaml:"candle_dir" default:"./data/candles"`
	// MaxIterations stops the loop after that many iterations. Zero runs
	// until cancelled.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"gte=0"`
}

type ConsensusConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" default:"0.6" validate:"gte=0,lte=1"`
	// Scores are tracked per-advisor base scores. Missing advisors use 1.0.
	Scores map[string]float64 `json:"scores,omitempty" yaml:"scores,omitempty"`
}

type RegimeConfig struct {
	Thresholds regime.Thresholds `json:"thresholds" yaml:"thresholds"`
	// Caps overrides the max position size per regime label.
	Caps map[string]float64 `json:"caps,omitempty" yaml:"caps,omitempty"`
}

type LabConfig struct {
	Thresholds      lab.Thresholds `json:"thresholds" yaml:"thresholds"`
	AllowedStatuses []string       `json:"allowed_statuses" yaml:"allowed_statuses" default:"[\"approved\"]"`
}

type ValidatorConfig struct {
	MaxPositionFrac float64 `json:"max_position_frac" yaml:"max_position_frac" default:"0.2" validate:"gt=0,lte=1"`
}

type CorrelationConfig struct {
	MaxCorrelatedExposure float64 `json:"max_correlated_exposure" yaml:"max_correlated_exposure" default:"0.08" validate:"gt=0,lte=1"`
}

type FailsafeConfig struct {
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct" default:"0.05" validate:"gt=0,lte=1"`
}

// PairConfig is one trading pair context.
type PairConfig struct {
	Symbol    string `json:"symbol" yaml:"symbol" validate:"required"`
	Timeframe string `json:"timeframe" yaml:"timeframe" default:"15m"`
	Enabled   *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the pair trades. Pairs are enabled unless
// set false.
func (p PairConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// AdvisorConfig declares a deterministic feature advisor.
type AdvisorConfig struct {
	ID         string             `json:"id" yaml:"id" validate:"required"`
	Role       string             `json:"role" yaml:"role"`
	Weights    map[string]float64 `json:"weights" yaml:"weights"`
	Bias       float64            `json:"bias,omitempty" yaml:"bias,omitempty"`
	Confidence float64            `json:"confidence" yaml:"confidence" default:"0.7" validate:"gte=0,lte=1"`
}

type StorageConfig struct {
	LabDB     string `json:"lab_db" yaml:"lab_db" default:"./data/lab.db"`
	JournalDB string `json:"journal_db" yaml:"journal_db" default:"./data/journal.db"`
}

type FeaturesConfig struct {
	Source string                        `json:"source" yaml:"source" default:"static" validate:"oneof=static redis"`
	Redis  RedisConfig                   `json:"redis" yaml:"redis"`
	Static map[string]map[string]float64 `json:"static,omitempty" yaml:"static,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" default:"localhost:6379"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db" validate:"gte=0"`
	Prefix   string `json:"prefix" yaml:"prefix" default:"swarm"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr" default:":9102"`
}

// LoadFromFile loads configuration from a YAML or JSON file, fills unset
// fields with defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	for i := range c.Pairs {
		if err := defaults.Set(&c.Pairs[i]); err != nil {
			return fmt.Errorf("pair %d defaults: %w", i, err)
		}
	}
	for i := range c.Advisors {
		if err := defaults.Set(&c.Advisors[i]); err != nil {
			return fmt.Errorf("advisor %d defaults: %w", i, err)
		}
	}
	return nil
}

// Validate runs the struct tag rules, then the cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return err
	}

	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	seen := map[string]bool{}
	for _, p := range c.Pairs {
		if !strings.Contains(p.Symbol, "/") {
			return fmt.Errorf("pair %q must be BASE/QUOTE", p.Symbol)
		}
		key := p.Symbol + " " + p.Timeframe
		if seen[key] {
			return fmt.Errorf("duplicate pair %s", key)
		}
		seen[key] = true
	}

	ids := map[string]bool{}
	for _, a := range c.Advisors {
		if ids[a.ID] {
			return fmt.Errorf("duplicate advisor id %q", a.ID)
		}
		ids[a.ID] = true
	}

	for label := range c.Regime.Caps {
		if _, err := regime.ParseLabel(label); err != nil {
			return fmt.Errorf("regime.caps: %w", err)
		}
	}
	if _, err := c.AllowedStatuses(); err != nil {
		return err
	}

	if c.Trading.MaxPositionSize > c.Validator.MaxPositionFrac {
		return fmt.Errorf("trading.max_position_size %.4f exceeds validator.max_position_frac %.4f",
			c.Trading.MaxPositionSize, c.Validator.MaxPositionFrac)
	}
	return nil
}

// AllowedStatuses parses lab.allowed_statuses.
func (c *Config) AllowedStatuses() ([]lab.Status, error) {
	out := make([]lab.Status, 0, len(c.Lab.AllowedStatuses))
	for _, s := range c.Lab.AllowedStatuses {
		st, err := lab.ParseStatus(s)
		if err != nil {
			return nil, fmt.Errorf("lab.allowed_statuses: %w", err)
		}
		out = append(out, st)
	}
	return out, nil
}

// RegimeCaps returns the per-label overrides keyed by label.
func (c *Config) RegimeCaps() map[regime.Label]float64 {
	out := make(map[regime.Label]float64, len(c.Regime.Caps))
	for k, v := range c.Regime.Caps {
		if l, err := regime.ParseLabel(k); err == nil {
			out[l] = v
		}
	}
	return out
}

// Policy returns the sizing limits and trade filters.
func (c *Config) Policy() risk.Policy {
	return risk.Policy{
		KellyFraction:         c.Trading.KellyFraction,
		MaxPosition:           c.Trading.MaxPositionSize,
		MaxPositionFrac:       c.Validator.MaxPositionFrac,
		MaxCorrelatedExposure: c.Correlation.MaxCorrelatedExposure,
		MaxDailyLossPct:       c.Failsafe.MaxDailyLossPct,
	}
}

// Default returns a configuration with sensible defaults: one BTC/USDT 15m
// pair and three feature advisors.
func Default() *Config {
	cfg := &Config{
		Pairs: []PairConfig{{Symbol: "BTC/USDT", Timeframe: "15m"}},
		Advisors: []AdvisorConfig{
			{
				ID:   "orderflow",
				Role: "microstructure",
				Weights: map[string]float64{
					market.FeatureOrderbookImbalance: 2.0,
					market.FeatureFundingImbalance:   -1.0,
				},
			},
			{
				ID:   "onchain",
				Role: "flows",
				Weights: map[string]float64{
					market.FeatureWhaleSignal:    1.0,
					market.FeatureStablecoinFlow: 0.5,
				},
			},
			{
				ID:   "sentiment",
				Role: "social",
				Weights: map[string]float64{
					market.FeatureSocialSignal: 1.0,
					market.FeatureOptionsFlow:  0.5,
				},
			},
		},
	}
	if err := cfg.applyDefaults(); err != nil {
		panic(err)
	}
	return cfg
}
