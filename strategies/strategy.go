package strategies

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/swarm/market"
)

// ErrUnknownStrategy is returned by New for an id with no registered factory.
var ErrUnknownStrategy = errors.New("unknown strategy")

type SignalType int

const (
	EntryLong SignalType = iota + 1
	ExitLong
	EntryShort
	ExitShort
)

func (t SignalType) String() string {
	switch t {
	case EntryLong:
		return "ENTRY_LONG"
	case ExitLong:
		return "EXIT_LONG"
	case EntryShort:
		return "ENTRY_SHORT"
	case ExitShort:
		return "EXIT_SHORT"
	}
	return fmt.Sprintf("SignalType(%d)", int(t))
}

// Signal is one timestamped instruction emitted by a strategy.
type Signal struct {
	Time         time.Time
	Type         SignalType
	Price        float64
	SizeFraction float64
	Meta         map[string]any
}

// Reason returns Meta["reason"] or "".
func (s Signal) Reason() string {
	r, _ := s.Meta["reason"].(string)
	return r
}

// Strategy turns a chronological candle window into signals. Implementations
// keep no state between calls.
type Strategy interface {
	ID() string
	Params() map[string]any
	GenerateSignals(candles []market.Candle) []Signal
}

// Config identifies a strategy instance.
type Config struct {
	ID        string         `yaml:"id" json:"id"`
	Pair      string         `yaml:"pair" json:"pair"`
	Timeframe string         `yaml:"timeframe" json:"timeframe"`
	Params    map[string]any `yaml:"params" json:"params"`
}

// Factory builds a strategy from its config.
type Factory func(cfg Config) (Strategy, error)

var registry = make(map[string]Factory)

// Register makes a factory available to New. Registering an id twice
// replaces the earlier factory.
func Register(id string, f Factory) {
	registry[id] = f
}

// New builds the strategy registered under cfg.ID.
func New(cfg Config) (Strategy, error) {
	f, ok := registry[strings.TrimSpace(cfg.ID)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownStrategy, cfg.ID, strings.Join(Names(), ", "))
	}
	s, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", cfg.ID, err)
	}
	return s, nil
}

// Names returns the registered ids in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// decodeParams overlays params onto dst, which carries the defaults.
// Unknown keys are an error.
func decodeParams(params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// paramsMap renders a params struct as a generic map.
func paramsMap(p any) map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}
