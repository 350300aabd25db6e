package feeds

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/swarm/market"
)

// CandleSource returns up to limit of the most recent candles, oldest
// first.
type CandleSource interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error)
}

// CSVCandles serves candles from files named <base><quote>_<timeframe>.csv
// in Dir, the same format the backtest runner reads. Files are reloaded
// when their modification time changes.
type CSVCandles struct {
	Dir string

	mu    sync.Mutex
	cache map[string]csvEntry
}

type csvEntry struct {
	mod     time.Time
	candles []market.Candle
}

func NewCSVCandles(dir string) *CSVCandles {
	return &CSVCandles{Dir: dir, cache: map[string]csvEntry{}}
}

// CandleFile returns the path CSVCandles reads for symbol and timeframe.
func CandleFile(dir, symbol, timeframe string) string {
	base, quote := market.SplitSymbol(symbol)
	name := strings.ToLower(base+quote) + "_" + timeframe + ".csv"
	return filepath.Join(dir, name)
}

func (c *CSVCandles) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := CandleFile(c.Dir, symbol, timeframe)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("candles %s %s: %w", symbol, timeframe, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[path]
	if !ok || !e.mod.Equal(fi.ModTime()) {
		cs, err := market.LoadCandlesCSV(path)
		if err != nil {
			return nil, fmt.Errorf("candles %s %s: %w", symbol, timeframe, err)
		}
		e = csvEntry{mod: fi.ModTime(), candles: cs}
		c.cache[path] = e
	}

	cs := e.candles
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return append([]market.Candle(nil), cs...), nil
}
