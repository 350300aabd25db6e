package lab

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/swarm/pkg/id"
)

// SQLiteStore implements Store on a SQLite file. Use ":memory:" in tests.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("lab db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("lab schema: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) UpsertStrategy(ctx context.Context, sid, pair, timeframe string, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("strategy %s params: %w", sid, err)
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, pair, timeframe, params, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pair = excluded.pair,
			timeframe = excluded.timeframe,
			params = excluded.params,
			updated_at = excluded.updated_at`,
		sid, pair, timeframe, string(raw), string(Experimental), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert strategy %s: %w", sid, err)
	}
	return nil
}

func (s *SQLiteStore) RecordBacktest(ctx context.Context, rec BacktestRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = id.New()
	}
	if rec.RunAt.IsZero() {
		rec.RunAt = s.now()
	}
	m := rec.Metrics

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backtests (
			id, strategy_id, run_at, sample_start, sample_end, initial_capital,
			total_return, max_drawdown, sharpe, win_rate, profit_factor, num_trades,
			avg_win, avg_loss, equity_path, trades_path
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StrategyID, rec.RunAt.UTC(), rec.SampleStart.UTC(), rec.SampleEnd.UTC(), rec.InitialCapital,
		m.TotalReturn, m.MaxDrawdown, m.Sharpe, m.WinRate, m.ProfitFactor, m.NumTrades,
		m.AvgWin, m.AvgLoss, rec.EquityPath, rec.TradesPath,
	)
	if err != nil {
		return "", fmt.Errorf("record backtest for %s: %w", rec.StrategyID, err)
	}
	return rec.ID, nil
}

func (s *SQLiteStore) SetStrategyStatus(ctx context.Context, sid string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE strategies SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now(), sid)
	if err != nil {
		return fmt.Errorf("set status %s: %w", sid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrStrategyNotFound, sid)
	}
	return nil
}

const backtestColumns = `
	id, strategy_id, run_at, sample_start, sample_end, initial_capital,
	total_return, max_drawdown, sharpe, win_rate, profit_factor, num_trades,
	avg_win, avg_loss, equity_path, trades_path`

type scanner interface {
	Scan(dest ...any) error
}

func scanBacktest(row scanner) (BacktestRecord, error) {
	var rec BacktestRecord
	err := row.Scan(
		&rec.ID,
		&rec.StrategyID,
		&rec.RunAt,
		&rec.SampleStart,
		&rec.SampleEnd,
		&rec.InitialCapital,
		&rec.Metrics.TotalReturn,
		&rec.Metrics.MaxDrawdown,
		&rec.Metrics.Sharpe,
		&rec.Metrics.WinRate,
		&rec.Metrics.ProfitFactor,
		&rec.Metrics.NumTrades,
		&rec.Metrics.AvgWin,
		&rec.Metrics.AvgLoss,
		&rec.EquityPath,
		&rec.TradesPath,
	)
	return rec, err
}

func (s *SQLiteStore) BacktestsForStrategy(ctx context.Context, sid string) ([]BacktestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+backtestColumns+`
		FROM backtests
		WHERE strategy_id = ?
		ORDER BY run_at DESC, id DESC`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRecord
	for rows.Next() {
		rec, err := scanBacktest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StrategiesSummary returns every strategy ordered by id, each with its
// backtest count and latest run.
func (s *SQLiteStore) StrategiesSummary(ctx context.Context) ([]StrategySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pair, timeframe, params, status
		FROM strategies
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StrategySummary
	index := map[string]int{}
	for rows.Next() {
		var (
			sum    StrategySummary
			params string
			status string
		)
		if err := rows.Scan(&sum.ID, &sum.Pair, &sum.Timeframe, &params, &status); err != nil {
			return nil, err
		}
		sum.Status = Status(status)
		sum.Params = map[string]any{}
		if params != "" {
			if err := json.Unmarshal([]byte(params), &sum.Params); err != nil {
				return nil, fmt.Errorf("strategy %s params: %w", sum.ID, err)
			}
		}
		index[sum.ID] = len(out)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	bts, err := s.db.QueryContext(ctx, `
		SELECT`+backtestColumns+`
		FROM backtests
		ORDER BY run_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer bts.Close()

	for bts.Next() {
		rec, err := scanBacktest(bts)
		if err != nil {
			return nil, err
		}
		i, ok := index[rec.StrategyID]
		if !ok {
			continue
		}
		sum := &out[i]
		sum.NumBacktests++
		if sum.Latest == nil {
			m := rec.Metrics
			runAt := rec.RunAt
			sum.Latest = &m
			sum.LastRunAt = &runAt
		}
	}
	if err := bts.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
