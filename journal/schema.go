package journal

const Schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	type TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	timeframe TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_time ON entries(time);
CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type, time);
`
