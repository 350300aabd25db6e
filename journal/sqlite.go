package journal

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

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (j *SQLite) append(ctx context.Context, typ EntryType, symbol, timeframe string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal %s payload: %w", typ, err)
	}

	t := j.now()
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO entries (id, time, type, symbol, timeframe, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.NewAt(t), t, string(typ), symbol, timeframe, string(raw),
	)
	if err != nil {
		return fmt.Errorf("journal %s: %w", typ, err)
	}
	return nil
}

func (j *SQLite) LogTrade(ctx context.Context, symbol, timeframe string, t Trade) error {
	return j.append(ctx, TypeTrade, symbol, timeframe, t)
}

func (j *SQLite) LogRegime(ctx context.Context, symbol, timeframe string, r Regime) error {
	return j.append(ctx, TypeRegime, symbol, timeframe, r)
}

func (j *SQLite) LogInfo(ctx context.Context, symbol, msg string, fields map[string]any) error {
	return j.append(ctx, TypeInfo, symbol, "", Message{Message: msg, Fields: fields})
}

func (j *SQLite) LogError(ctx context.Context, symbol string, err error, fields map[string]any) error {
	msg := "<nil>"
	if err != nil {
		msg = err.Error()
	}
	return j.append(ctx, TypeError, symbol, "", Message{Message: msg, Fields: fields})
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

var _ Journal = (*SQLite)(nil)
