package lab

const Schema = `
CREATE TABLE IF NOT EXISTS strategies (
	id TEXT PRIMARY KEY,
	pair TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	params TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'experimental',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS backtests (
	id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL REFERENCES strategies(id),
	run_at DATETIME NOT NULL,
	sample_start DATETIME NOT NULL,
	sample_end DATETIME NOT NULL,
	initial_capital REAL NOT NULL,
	total_return REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	sharpe REAL NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL,
	num_trades INTEGER NOT NULL,
	avg_win REAL NOT NULL DEFAULT 0,
	avg_loss REAL NOT NULL DEFAULT 0,
	equity_path TEXT NOT NULL DEFAULT '',
	trades_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_backtests_strategy_run ON backtests(strategy_id, run_at);
`
