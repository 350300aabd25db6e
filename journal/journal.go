// Package journal is the append-only decision journal of the live loop:
// executed trades, regime classifications and operator-visible events.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type EntryType string

const (
	TypeTrade  EntryType = "trade"
	TypeRegime EntryType = "regime"
	TypeInfo   EntryType = "info"
	TypeError  EntryType = "error"
)

// Entry is one journal row. Payload is the JSON encoding of the value
// that was logged.
type Entry struct {
	ID        string
	Time      time.Time
	Type      EntryType
	Symbol    string
	Timeframe string
	Payload   json.RawMessage
}

// Decode unmarshals the payload into v.
func (e Entry) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("entry %s has no payload", e.ID)
	}
	return json.Unmarshal(e.Payload, v)
}

// Trade is the payload of a trade entry.
type Trade struct {
	StrategyID string  `json:"strategy_id"`
	Side       string  `json:"side"`
	Fraction   float64 `json:"fraction"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
}

// Regime is the payload of a regime entry.
type Regime struct {
	Label      string  `json:"label"`
	Direction  string  `json:"direction"`
	Sentiment  float64 `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Dissent    float64 `json:"dissent"`
	MaxSize    float64 `json:"max_position_size"`
}

// Message is the payload of info and error entries.
type Message struct {
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type Journal interface {
	LogTrade(ctx context.Context, symbol, timeframe string, t Trade) error
	LogRegime(ctx context.Context, symbol, timeframe string, r Regime) error
	LogInfo(ctx context.Context, symbol, msg string, fields map[string]any) error
	LogError(ctx context.Context, symbol string, err error, fields map[string]any) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) LogTrade(context.Context, string, string, Trade) error         { return nil }
func (Nop) LogRegime(context.Context, string, string, Regime) error       { return nil }
func (Nop) LogInfo(context.Context, string, string, map[string]any) error { return nil }
func (Nop) LogError(context.Context, string, error, map[string]any) error { return nil }
func (Nop) Recent(context.Context, int) ([]Entry, error)                  { return nil, nil }
func (Nop) Close() error                                                  { return nil }
