package market

import (
	"sort"
	"time"
)

// Candle represents OHLCV data for one bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Side is the direction of a trade instruction.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// SortCandles orders candles by time ascending, in place.
func SortCandles(cs []Candle) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time.Before(cs[j].Time) })
}

// Closes returns the close prices of cs.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// SplitSymbol splits "BTC/USDT" into base and quote.
// A symbol without a slash is returned as the base with an empty quote.
func SplitSymbol(symbol string) (base, quote string) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			return symbol[:i], symbol[i+1:]
		}
	}
	return symbol, ""
}
