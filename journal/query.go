package journal

import (
	"context"
	"database/sql"
	"fmt"
)

const entryColumns = `id, time, type, symbol, timeframe, payload`

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// every entry.
func (j *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return j.query(ctx, q, args...)
}

// ByType returns up to limit entries of one type for symbol, newest
// first. An empty symbol matches every symbol.
func (j *SQLite) ByType(ctx context.Context, typ EntryType, symbol string, limit int) ([]Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries WHERE type = ?`
	args := []any{string(typ)}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return j.query(ctx, q, args...)
}

// Get returns a single entry by id.
func (j *SQLite) Get(ctx context.Context, entryID string) (Entry, error) {
	out, err := j.query(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, entryID)
	if err != nil {
		return Entry{}, err
	}
	if len(out) == 0 {
		return Entry{}, fmt.Errorf("entry %q: %w", entryID, sql.ErrNoRows)
	}
	return out[0], nil
}

func (j *SQLite) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			typ     string
			payload string
		)
		if err := rows.Scan(&e.ID, &e.Time, &typ, &e.Symbol, &e.Timeframe, &payload); err != nil {
			return nil, err
		}
		e.Type = EntryType(typ)
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
