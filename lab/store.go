// Package lab persists strategy backtests and decides which strategies may
// trade live.
package lab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/swarm/backtest"
)

var ErrStrategyNotFound = errors.New("strategy not found")

type Status string

const (
	InsufficientData Status = "insufficient_data"
	Experimental     Status = "experimental"
	Approved         Status = "approved"
	Rejected         Status = "rejected"
)

var Statuses = []Status{InsufficientData, Experimental, Approved, Rejected}

func (s Status) String() string { return string(s) }

func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown lab status %q", s)
}

// StrategySummary is a strategy row joined with its latest backtest.
type StrategySummary struct {
	ID        string
	Pair      string
	Timeframe string
	Params    map[string]any
	Status    Status
	LastRunAt *time.Time
	// Latest is nil when the strategy has never been backtested.
	Latest       *backtest.Metrics
	NumBacktests int
}

type BacktestRecord struct {
	ID             string
	StrategyID     string
	RunAt          time.Time
	SampleStart    time.Time
	SampleEnd      time.Time
	InitialCapital float64
	Metrics        backtest.Metrics
	EquityPath     string
	TradesPath     string
}

// Store is the persistence the lab needs.
type Store interface {
	// UpsertStrategy creates or updates a strategy. An existing status is
	// preserved; new strategies start as Experimental.
	UpsertStrategy(ctx context.Context, id, pair, timeframe string, params map[string]any) error
	// RecordBacktest stores a run and returns its id.
	RecordBacktest(ctx context.Context, rec BacktestRecord) (string, error)
	SetStrategyStatus(ctx context.Context, id string, status Status) error
	StrategiesSummary(ctx context.Context) ([]StrategySummary, error)
	// BacktestsForStrategy returns runs newest first.
	BacktestsForStrategy(ctx context.Context, id string) ([]BacktestRecord, error)
	Close() error
}
